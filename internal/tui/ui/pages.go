package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages keeps a navigation stack over tview.Pages. Only the top page is
// visible; every change reports the new stack to the OnChange callback,
// which drives the breadcrumbs.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

func NewPages() *Pages {
	return &Pages{Pages: tview.NewPages()}
}

func (p *Pages) SetOnChange(fn func(stack []string)) { p.onChange = fn }

// Push shows name on top of the stack. Pushing the current page is a no-op.
func (p *Pages) Push(name string) {
	if p.Current() == name {
		return
	}
	p.show(append(p.stack, name))
}

// Pop drops the top page and returns its name, or "" on an empty stack.
func (p *Pages) Pop() string {
	top := p.Current()
	if top == "" {
		return ""
	}
	p.show(p.stack[:len(p.stack)-1])
	return top
}

// PopTo pops until name is on top. It reports false, leaving the stack
// alone, when name is not on it.
func (p *Pages) PopTo(name string) bool {
	i := slices.Index(p.stack, name)
	if i < 0 {
		return false
	}
	p.show(p.stack[:i+1])
	return true
}

// Reset makes name the only page on the stack.
func (p *Pages) Reset(name string) { p.show([]string{name}) }

func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns a copy of the stack, bottom first.
func (p *Pages) Stack() []string { return slices.Clone(p.stack) }

func (p *Pages) Depth() int { return len(p.stack) }

// show hides every page of the old stack, installs stack and raises its top.
func (p *Pages) show(stack []string) {
	for _, name := range p.stack {
		p.HidePage(name)
	}
	p.stack = stack
	if top := p.Current(); top != "" {
		p.ShowPage(top)
		p.SendToFront(top)
	}
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}
