// Package variant regroups externally classified units into ordered
// variant groups using a label-driven scan over the unit sequence.
//
// The aggregator never mutates its input: every returned unit is a fresh
// copy, so callers keep an unmodified audit trail of what the classifier
// saw.
package variant

import (
	"fmt"
	"strconv"

	"github.com/siwzmap/siwzmap/internal/document"
)

// Config controls aggregation.
type Config struct {
	// DefaultGroupID is used when no group_header appears at all.
	DefaultGroupID string
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{DefaultGroupID: "V1"}
}

// Aggregate assigns group ids and buckets each unit into at most one
// group. Units and classifications must be position-aligned; a count
// mismatch or an unknown label is a structural error that fails the whole
// call. Every input unit appears exactly once in the returned sequence, in
// input order; units outside any group keep an empty GroupID.
func Aggregate(units []document.Unit, classifications []document.Classification, cfg Config) ([]document.Unit, []document.Group, error) {
	if cfg.DefaultGroupID == "" {
		cfg.DefaultGroupID = "V1"
	}

	if len(units) != len(classifications) {
		return nil, nil, fmt.Errorf("units (%d) and classifications (%d) must have same length", len(units), len(classifications))
	}
	for i := range classifications {
		if err := classifications[i].Validate(); err != nil {
			return nil, nil, fmt.Errorf("classification %d: %w", i, err)
		}
	}
	if len(units) == 0 {
		return nil, nil, nil
	}

	headers := headerPositions(classifications)
	if len(headers) == 0 {
		return aggregateSingle(units, classifications, cfg.DefaultGroupID)
	}
	return aggregateMulti(units, classifications, headers)
}

// header is one accepted group_header together with its assigned id.
type header struct {
	pos int
	id  string
}

// headerPositions scans for group_header classifications and assigns each
// a group id. Hints win ("2" becomes "V2"); headers without a hint get the
// next sequential number, where the counter tracks the highest numeric id
// ever assigned, hinted or not. A hint colliding with an already-taken id
// is discarded and that header falls back to the sequential counter, so
// ids stay unique within one run.
func headerPositions(classifications []document.Classification) []header {
	var headers []header
	used := make(map[string]bool)
	maxNum := 0

	take := func(id string) {
		used[id] = true
		if n, err := strconv.Atoi(id[1:]); err == nil && n > maxNum {
			maxNum = n
		}
	}

	for i, cls := range classifications {
		if cls.Label != document.LabelGroupHeader {
			continue
		}
		var id string
		if cls.GroupHint != "" {
			id = "V" + cls.GroupHint
		}
		if id == "" || used[id] {
			id = "V" + strconv.Itoa(maxNum+1)
		}
		take(id)
		headers = append(headers, header{pos: i, id: id})
	}
	return headers
}

// aggregateSingle handles the no-headers case: one group with the default
// id collects body and annex units; everything else passes through
// ungrouped.
func aggregateSingle(units []document.Unit, classifications []document.Classification, groupID string) ([]document.Unit, []document.Group, error) {
	group := document.Group{GroupID: groupID}
	updated := make([]document.Unit, 0, len(units))

	for i := range units {
		u := units[i].Clone()
		cls := classifications[i]
		switch {
		case cls.Label == document.LabelPricingTable:
			// Pricing columns are not content variants.
		case cls.Label == document.LabelGroupBody:
			u.GroupID = groupID
			group.Body = append(group.Body, u)
		case cls.AnnexFlag || cls.Label == document.LabelAnnex:
			u.GroupID = groupID
			group.Annex = append(group.Annex, u)
		}
		updated = append(updated, u)
	}

	return updated, []document.Group{group}, nil
}

// aggregateMulti walks header ranges [header_i, header_{i+1}) and buckets
// the units inside each range.
func aggregateMulti(units []document.Unit, classifications []document.Classification, headers []header) ([]document.Unit, []document.Group, error) {
	updated := make([]document.Unit, 0, len(units))
	groups := make([]document.Group, 0, len(headers))

	// Units before the first header belong to no group.
	for i := 0; i < headers[0].pos; i++ {
		updated = append(updated, units[i].Clone())
	}

	for h, hd := range headers {
		end := len(units)
		if h+1 < len(headers) {
			end = headers[h+1].pos
		}

		group := document.Group{GroupID: hd.id}

		for i := hd.pos; i < end; i++ {
			u := units[i].Clone()
			cls := classifications[i]
			switch {
			case i == hd.pos:
				u.GroupID = hd.id
				headerUnit := u
				group.Header = &headerUnit
			case cls.Label == document.LabelPricingTable:
				// Never folded into a content group.
			case cls.Label == document.LabelGroupBody:
				u.GroupID = hd.id
				group.Body = append(group.Body, u)
			case cls.AnnexFlag || cls.Label == document.LabelAnnex:
				u.GroupID = hd.id
				group.Annex = append(group.Annex, u)
			}
			updated = append(updated, u)
		}

		groups = append(groups, group)
	}

	return updated, groups, nil
}

// GroupIDs lists the ids of the given groups in order.
func GroupIDs(groups []document.Group) []string {
	ids := make([]string, len(groups))
	for i := range groups {
		ids[i] = groups[i].GroupID
	}
	return ids
}
