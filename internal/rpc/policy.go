package rpc

import (
	"context"
	"fmt"

	"github.com/koustreak/sqlgrid/internal/database"
	"github.com/koustreak/sqlgrid/internal/errs"
)

// DeletePolicy decides server-side whether a row may be deleted.
type DeletePolicy interface {
	AllowDelete(ctx context.Context, req DeleteRequest) (bool, error)
}

// AllowAllPolicy allows every deletion.
type AllowAllPolicy struct{}

func (AllowAllPolicy) AllowDelete(context.Context, DeleteRequest) (bool, error) {
	return true, nil
}

// FuncPolicy adapts a function to DeletePolicy.
type FuncPolicy func(ctx context.Context, req DeleteRequest) (bool, error)

func (f FuncPolicy) AllowDelete(ctx context.Context, req DeleteRequest) (bool, error) {
	return f(ctx, req)
}

// EvenRowsPolicy allows deleting rows at even positions only. It exists
// to demonstrate a denial end to end.
func EvenRowsPolicy() DeletePolicy {
	return FuncPolicy(func(_ context.Context, req DeleteRequest) (bool, error) {
		return req.RowNumber%2 == 0, nil
	})
}

// ReferencePolicy denies deleting a row while any foreign key in another
// table still points at it.
type ReferencePolicy struct {
	Inspector database.ReferenceInspector
	Backend   database.Backend
}

func (p ReferencePolicy) AllowDelete(ctx context.Context, req DeleteRequest) (bool, error) {
	fks, err := p.Inspector.ReferencingKeys(ctx, req.TableName)
	if err != nil {
		return false, err
	}

	for _, fk := range fks {
		v, ok := req.Row.Get(fk.RefColumn)
		if !ok || v == nil {
			continue
		}
		if !database.ValidIdentifier(fk.Table) || !database.ValidIdentifier(fk.Column) {
			return false, errs.Newf(errs.ErrKindInvalidInput, "cannot check references from %s.%s", fk.Table, fk.Column)
		}

		q := fmt.Sprintf("SELECT 1 FROM %s WHERE %s=? LIMIT 1", fk.Table, fk.Column)
		rows, err := p.Backend.Select(ctx, q, v)
		if err != nil {
			return false, err
		}
		if len(rows) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// Policy names accepted by LookupPolicy.
const (
	PolicyAllow      = "allow"
	PolicyReferences = "references"
	PolicyEvenRows   = "even-rows"
)

// LookupPolicy builds the named policy for backend.
func LookupPolicy(name string, backend database.Backend) (DeletePolicy, error) {
	switch name {
	case "", PolicyAllow:
		return AllowAllPolicy{}, nil
	case PolicyEvenRows:
		return EvenRowsPolicy(), nil
	case PolicyReferences:
		insp, ok := backend.(database.ReferenceInspector)
		if !ok {
			return nil, errs.New(errs.ErrKindUnsupported, "backend cannot list foreign keys")
		}
		return ReferencePolicy{Inspector: insp, Backend: backend}, nil
	default:
		return nil, errs.Newf(errs.ErrKindUnsupported, "unknown delete policy %q", name)
	}
}
