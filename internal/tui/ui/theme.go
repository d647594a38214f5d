package ui

import (
	"os"

	"github.com/gdamore/tcell/v2"
)

// Theme is the palette every widget draws with.
type Theme struct {
	// Frame.
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TitleColor       tcell.Color
	CounterColor     tcell.Color

	// Tables.
	TableHeaderFg tcell.Color
	TableHeaderBg tcell.Color
	TableCursorFg tcell.Color
	TableCursorBg tcell.Color

	// Header chrome.
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	PromptBorderColor tcell.Color

	FlashInfoColor tcell.Color
	FlashWarnColor tcell.Color
	FlashErrColor  tcell.Color

	// Chat content.
	SelfColor     tcell.Color
	PeerColor     tcell.Color
	MetaColor     tcell.Color
	SelectedColor tcell.Color
}

// ThemeFromEnv returns MonoTheme when NO_COLOR is set, else DefaultTheme.
func ThemeFromEnv() *Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return MonoTheme()
	}
	return DefaultTheme()
}

// DefaultTheme is the dark palette.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorSilver,
		BorderColor:      tcell.ColorSteelBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TitleColor:       tcell.ColorGold,
		CounterColor:     tcell.ColorPapayaWhip,

		TableHeaderFg: tcell.ColorWhite,
		TableHeaderBg: tcell.ColorBlack,
		TableCursorFg: tcell.ColorBlack,
		TableCursorBg: tcell.ColorSteelBlue,

		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorGold,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorSteelBlue,
		MenuKeyColor:      tcell.ColorLightSkyBlue,
		NumericKeyColor:   tcell.ColorGold,
		PromptBorderColor: tcell.ColorLightSkyBlue,

		FlashInfoColor: tcell.ColorNavajoWhite,
		FlashWarnColor: tcell.ColorOrange,
		FlashErrColor:  tcell.ColorOrangeRed,

		SelfColor:     tcell.ColorLightGreen,
		PeerColor:     tcell.ColorLightSkyBlue,
		MetaColor:     tcell.ColorGray,
		SelectedColor: tcell.ColorGold,
	}
}

// MonoTheme leaves every color to the terminal defaults.
func MonoTheme() *Theme {
	d := tcell.ColorDefault
	return &Theme{
		BgColor: d, FgColor: d, BorderColor: d, BorderFocusColor: d, TitleColor: d, CounterColor: d,
		TableHeaderFg: d, TableHeaderBg: d, TableCursorFg: tcell.ColorBlack, TableCursorBg: tcell.ColorWhite,
		CrumbActiveFg: tcell.ColorBlack, CrumbActiveBg: tcell.ColorWhite, CrumbInactiveFg: d, CrumbInactiveBg: d,
		MenuKeyColor: d, NumericKeyColor: d, PromptBorderColor: d,
		FlashInfoColor: d, FlashWarnColor: d, FlashErrColor: d,
		SelfColor: d, PeerColor: d, MetaColor: d, SelectedColor: d,
	}
}
