package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/matheus3301/microchat/internal/rpc"
)

const textWidth = 60

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// ago renders a unix millisecond timestamp relative to now.
func ago(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return humanize.Time(time.UnixMilli(ms))
}

// oneLine collapses whitespace and cuts s to the table width.
func oneLine(s string) string {
	return runewidth.Truncate(strings.Join(strings.Fields(s), " "), textWidth, "…")
}

func chatName(name, chat string) string {
	if name != "" {
		return name
	}
	return "#" + chat
}

func senderName(m rpc.Message) string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return fmt.Sprintf("#%d", m.SenderID)
}

func uploadProgress(u rpc.Upload) string {
	if u.Total <= 0 {
		return humanize.Bytes(uint64(max(u.Sent, 0)))
	}
	pct := u.Sent * 100 / u.Total
	return fmt.Sprintf("%s / %s (%d%%)", humanize.Bytes(uint64(u.Sent)), humanize.Bytes(uint64(u.Total)), pct)
}

func printMessages(w io.Writer, msgs []rpc.Message) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tFROM\tWHEN\tTEXT")
	for _, m := range msgs {
		text := oneLine(m.Text)
		if m.EditedAtUnixMs != 0 {
			text += " (edited)"
		}
		for _, a := range m.Attachments {
			label := a.Name
			if label == "" {
				label = fmt.Sprintf("file %d", a.ID)
			}
			text += fmt.Sprintf(" [%s]", label)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", m.ID, senderName(m), ago(m.SentAtUnixMs), text)
	}
	return tw.Flush()
}

func printUploads(w io.Writer, uploads []rpc.Upload) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tPROGRESS\tFILE")
	for _, u := range uploads {
		file := "-"
		if u.FileID != 0 {
			file = fmt.Sprint(u.FileID)
		}
		state := u.State
		if u.Error != "" {
			state += ": " + u.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, state, uploadProgress(u), file)
	}
	return tw.Flush()
}
