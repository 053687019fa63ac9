package compiler

import (
	"strconv"
	"strings"

	"github.com/satishbabariya/sqltyped/internal/core/query/domain"
)

// over renders the over clause of a window or aggregate call.
func (e *exprCompiler) over(w *domain.Window) (string, error) {
	var parts []string
	if len(w.PartitionBy) > 0 {
		terms, err := e.list(w.PartitionBy)
		if err != nil {
			return "", err
		}
		parts = append(parts, "partition by "+strings.Join(terms, ", "))
	}
	if len(w.OrderBy) > 0 {
		terms, err := e.list(w.OrderBy)
		if err != nil {
			return "", err
		}
		if w.Desc {
			for i := range terms {
				terms[i] += " desc"
			}
		}
		parts = append(parts, "order by "+strings.Join(terms, ", "))
	}
	if w.Frame != nil {
		frame, err := frameClause(w.Frame)
		if err != nil {
			return "", err
		}
		parts = append(parts, frame)
	}
	return "over (" + strings.Join(parts, " ") + ")", nil
}

func frameClause(f *domain.Frame) (string, error) {
	typ := f.Type
	if typ == "" {
		typ = domain.FrameRows
	}
	switch typ {
	case domain.FrameRows, domain.FrameRange, domain.FrameGroups:
	default:
		return "", domain.Errorf("window", "unknown frame type %q", f.Type)
	}
	if f.Start.Kind > f.End.Kind || f.Start.Kind == domain.UnboundedFollowing || f.End.Kind == domain.UnboundedPreceding {
		return "", domain.Errorf("window", "frame starts after it ends")
	}
	start, err := frameBound(f.Start)
	if err != nil {
		return "", err
	}
	end, err := frameBound(f.End)
	if err != nil {
		return "", err
	}
	return string(typ) + " between " + start + " and " + end, nil
}

func frameBound(b domain.FrameBound) (string, error) {
	switch b.Kind {
	case domain.UnboundedPreceding:
		return "unbounded preceding", nil
	case domain.CurrentRow:
		return "current row", nil
	case domain.UnboundedFollowing:
		return "unbounded following", nil
	case domain.Preceding, domain.Following:
		if b.Offset < 0 {
			return "", domain.Errorf("window", "negative frame offset %d", b.Offset)
		}
		dir := " preceding"
		if b.Kind == domain.Following {
			dir = " following"
		}
		return strconv.Itoa(b.Offset) + dir, nil
	}
	return "", domain.Errorf("window", "unknown frame bound %d", b.Kind)
}
