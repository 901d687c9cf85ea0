package estimation

import (
	"fmt"
	"slices"
	"strings"
)

// CustomTemplateName is the one template name a room may add to its catalog at runtime.
const CustomTemplateName = "Custom"

type Option struct {
	Text        string   `json:"text" yaml:"text"`
	Conflicting []string `json:"conflicting" yaml:"conflicting"`
}

type Template struct {
	Name    string   `json:"name" yaml:"name"`
	Options []Option `json:"options" yaml:"options"`
}

// Validate checks that the template has a name and that option texts are
// non-empty and unique, so a vote resolves to at most one option.
func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyTemplateName
	}
	if len(t.Options) == 0 {
		return fmt.Errorf("%w: %s", ErrNoOptions, t.Name)
	}
	seen := make(map[string]struct{}, len(t.Options))
	for _, o := range t.Options {
		if strings.TrimSpace(o.Text) == "" {
			return fmt.Errorf("%w: %s", ErrEmptyOptionText, t.Name)
		}
		if _, ok := seen[o.Text]; ok {
			return fmt.Errorf("%w: %q in %s", ErrDuplicateOption, o.Text, t.Name)
		}
		seen[o.Text] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy; rooms never share option slices.
func (t Template) Clone() Template {
	c := Template{Name: t.Name, Options: make([]Option, len(t.Options))}
	for i, o := range t.Options {
		c.Options[i] = Option{Text: o.Text, Conflicting: slices.Clone(o.Conflicting)}
	}
	return c
}

// Symmetrize returns a copy where A conflicting with B implies B conflicting
// with A. Self references and references to unknown texts are dropped.
// Conflicts keep the order of the options they point to.
func (t Template) Symmetrize() Template {
	index := make(map[string]int, len(t.Options))
	for i, o := range t.Options {
		index[o.Text] = i
	}

	pairs := make([]map[string]struct{}, len(t.Options))
	for i := range pairs {
		pairs[i] = map[string]struct{}{}
	}
	for i, o := range t.Options {
		for _, c := range o.Conflicting {
			j, ok := index[c]
			if !ok || j == i {
				continue
			}
			pairs[i][c] = struct{}{}
			pairs[j][o.Text] = struct{}{}
		}
	}

	out := Template{Name: t.Name, Options: make([]Option, len(t.Options))}
	for i, o := range t.Options {
		conflicting := make([]string, 0, len(pairs[i]))
		for _, other := range t.Options {
			if _, ok := pairs[i][other.Text]; ok {
				conflicting = append(conflicting, other.Text)
			}
		}
		out.Options[i] = Option{Text: o.Text, Conflicting: conflicting}
	}
	return out
}

// Lookup resolves a vote text to its option and ordinal position.
func (t Template) Lookup(text string) (Option, int, bool) {
	for i, o := range t.Options {
		if o.Text == text {
			return o, i, true
		}
	}
	return Option{}, -1, false
}

// Texts lists the option labels in order.
func (t Template) Texts() []string {
	texts := make([]string, len(t.Options))
	for i, o := range t.Options {
		texts[i] = o.Text
	}
	return texts
}
