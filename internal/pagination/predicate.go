package pagination

import (
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"
)

// Direction selects which side of the boundary row a page is fetched from.
type Direction int

const (
	DirectionForward Direction = iota
	DirectionBackward
)

// Operator is the comparison applied to the sort column.
type Operator string

const (
	OpLess    Operator = "lt"
	OpGreater Operator = "gt"
)

// Column names are interpolated into SQL; restrict them to plain identifiers.
var columnPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Predicate is a keyset (seek) condition excluding the boundary row and every
// row on its far side. The tiebreak on a unique id guarantees no row is
// skipped or duplicated when sort-field values collide.
type Predicate struct {
	Column     string
	Op         Operator
	Value      any
	TiebreakID any
}

// Apply adds the keyset condition to a gorm query:
// (column < v) OR (column = v AND id < vid), with > for OpGreater.
func (p *Predicate) Apply(db *gorm.DB) *gorm.DB {
	cmp := "<"
	if p.Op == OpGreater {
		cmp = ">"
	}
	condition := fmt.Sprintf("%s %s ? OR (%s = ? AND %s %s ?)", p.Column, cmp, p.Column, TiebreakKey, cmp)
	return db.Where(condition, p.Value, p.Value, p.TiebreakID)
}

// BuildPredicate translates a decoded cursor into the keyset predicate for the
// requested paging direction. The operator is lt when (descending AND forward)
// or (ascending AND backward), gt otherwise.
func (c *Codec) BuildPredicate(p *Payload, direction Direction) (*Predicate, error) {
	if p == nil {
		return nil, errors.New("pagination: payload is required")
	}
	if !columnPattern.MatchString(p.SortBy) {
		return nil, fmt.Errorf("pagination: invalid sort column %q", p.SortBy)
	}

	value, ok := p.Values[p.SortBy]
	if !ok {
		return nil, errors.New("pagination: cursor is missing the sort field value")
	}
	id, ok := p.Values[TiebreakKey]
	if !ok {
		return nil, errors.New("pagination: cursor is missing the tiebreak id")
	}

	descending := p.SortOrder == SortDesc
	forward := direction == DirectionForward

	op := OpGreater
	if descending == forward {
		op = OpLess
	}

	return &Predicate{
		Column:     p.SortBy,
		Op:         op,
		Value:      value,
		TiebreakID: id,
	}, nil
}
