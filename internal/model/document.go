package model

import "iter"

// Document is an in-memory sequence of lines. The engines never need one.
type Document struct {
	lines []*Line
}

func (d *Document) Add(l *Line) { d.lines = append(d.lines, l) }

func (d *Document) Line(i int) *Line { return d.lines[i] }

func (d *Document) Len() int { return len(d.lines) }

// Lines iterates the lines in insertion order.
func (d *Document) Lines() iter.Seq[*Line] {
	return func(yield func(*Line) bool) {
		for _, l := range d.lines {
			if !yield(l) {
				return
			}
		}
	}
}
