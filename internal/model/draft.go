package model

import "fmt"

// Draft is the editable edition: an ordered sequence of groups per section,
// plus the skip bucket. A group sits in at most one sequence at a time.
//
// Draft is not safe for concurrent use. Once a session starts it is owned
// exclusively by that session.
type Draft struct {
	order  []Section
	seqs   map[Section][]string
	groups map[string]*Group
}

// NewDraft creates an empty draft over the given sections in priority
// order. Skip is appended if absent.
func NewDraft(sections []Section) *Draft {
	d := &Draft{
		seqs:   make(map[Section][]string, len(sections)+1),
		groups: make(map[string]*Group),
	}
	for _, s := range sections {
		if _, dup := d.seqs[s]; dup {
			continue
		}
		d.order = append(d.order, s)
		d.seqs[s] = nil
	}
	if _, ok := d.seqs[SectionSkip]; !ok {
		d.order = append(d.order, SectionSkip)
		d.seqs[SectionSkip] = nil
	}
	return d
}

// Sections returns every section in priority order, skip last.
func (d *Draft) Sections() []Section {
	return append([]Section(nil), d.order...)
}

// HasSection reports whether s is part of the draft.
func (d *Draft) HasSection(s Section) bool {
	_, ok := d.seqs[s]
	return ok
}

// Groups returns the ordered groups of section s.
func (d *Draft) Groups(s Section) []*Group {
	ids := d.seqs[s]
	out := make([]*Group, 0, len(ids))
	for _, id := range ids {
		out = append(out, d.groups[id])
	}
	return out
}

// IDs returns a copy of the ordered group ids of section s.
func (d *Draft) IDs(s Section) []string {
	return append([]string(nil), d.seqs[s]...)
}

// Count returns the number of groups in section s.
func (d *Draft) Count(s Section) int {
	return len(d.seqs[s])
}

// Group looks up a live group by id.
func (d *Draft) Group(id string) (*Group, bool) {
	g, ok := d.groups[id]
	return g, ok
}

// Live returns every placed group, sections in priority order, skip last.
func (d *Draft) Live() []*Group {
	var out []*Group
	for _, s := range d.order {
		out = append(out, d.Groups(s)...)
	}
	return out
}

// Locate returns the section and index holding group id.
func (d *Draft) Locate(id string) (Section, int, bool) {
	if _, ok := d.groups[id]; !ok {
		return "", -1, false
	}
	for _, s := range d.order {
		for i, gid := range d.seqs[s] {
			if gid == id {
				return s, i, true
			}
		}
	}
	return "", -1, false
}

// Append places g at the end of section s.
func (d *Draft) Append(s Section, g *Group) error {
	return d.Insert(s, -1, g)
}

// Insert places g in section s at index idx. A negative or out of range
// index appends.
func (d *Draft) Insert(s Section, idx int, g *Group) error {
	if !d.HasSection(s) {
		return fmt.Errorf("%w: %s", ErrUnknownSection, s)
	}
	if _, ok := d.groups[g.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyPlaced, g.ID)
	}
	d.groups[g.ID] = g
	d.seqs[s] = insertAt(d.seqs[s], idx, g.ID)
	return nil
}

// Detach removes group id from the draft entirely and reports where it was.
func (d *Draft) Detach(id string) (*Group, Section, int, error) {
	s, i, ok := d.Locate(id)
	if !ok {
		return nil, "", -1, fmt.Errorf("%w: %s", ErrUnknownGroup, id)
	}
	g := d.groups[id]
	d.seqs[s] = removeAt(d.seqs[s], i)
	delete(d.groups, id)
	return g, s, i, nil
}

// Move relocates group id to section to at index idx (negative appends).
// It returns the group's previous position.
func (d *Draft) Move(id string, to Section, idx int) (Section, int, error) {
	if !d.HasSection(to) {
		return "", -1, fmt.Errorf("%w: %s", ErrUnknownSection, to)
	}
	g, from, fromIdx, err := d.Detach(id)
	if err != nil {
		return "", -1, err
	}
	d.groups[id] = g
	d.seqs[to] = insertAt(d.seqs[to], idx, id)
	return from, fromIdx, nil
}

// Reorder moves group id to index idx within its current section and
// returns its previous index.
func (d *Draft) Reorder(id string, idx int) (int, error) {
	s, from, ok := d.Locate(id)
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrUnknownGroup, id)
	}
	seq := removeAt(d.seqs[s], from)
	d.seqs[s] = insertAt(seq, idx, id)
	return from, nil
}

// Clone returns a copy whose sequences can be mutated independently.
// Groups are shared; they are not mutated once a session begins.
func (d *Draft) Clone() *Draft {
	c := &Draft{
		order:  append([]Section(nil), d.order...),
		seqs:   make(map[Section][]string, len(d.seqs)),
		groups: make(map[string]*Group, len(d.groups)),
	}
	for s, ids := range d.seqs {
		c.seqs[s] = append([]string(nil), ids...)
	}
	for id, g := range d.groups {
		c.groups[id] = g
	}
	return c
}

// Layout returns section -> ordered ids for every section, including empty
// ones. Useful for comparing drafts.
func (d *Draft) Layout() map[Section][]string {
	out := make(map[Section][]string, len(d.order))
	for _, s := range d.order {
		out[s] = d.IDs(s)
	}
	return out
}

func insertAt(ids []string, idx int, id string) []string {
	if idx < 0 || idx >= len(ids) {
		return append(ids, id)
	}
	ids = append(ids, "")
	copy(ids[idx+1:], ids[idx:])
	ids[idx] = id
	return ids
}

func removeAt(ids []string, idx int) []string {
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:idx]...)
	return append(out, ids[idx+1:]...)
}
