package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/fkhayef/splitledger/internal/recurring"
)

// Recurring implements recurring.Store
type Recurring struct{ s *State }

func (v *Recurring) Create(_ context.Context, t *recurring.Template) (*recurring.Template, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.groups[t.GroupID]; !ok {
		return nil, fmt.Errorf("failed to create recurring template: group %d does not exist", t.GroupID)
	}

	created := *t
	created.ID = v.s.id()
	created.CreatedAt = v.s.now()
	created.Participants = slices.Clone(t.Participants)
	v.s.templates[created.ID] = &created

	out := created
	return &out, nil
}

func (v *Recurring) GetByID(_ context.Context, id int64) (*recurring.Template, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	t, ok := v.s.templates[id]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (v *Recurring) ListByGroupID(_ context.Context, groupID int64) ([]*recurring.Template, error) {
	return v.list(func(t *recurring.Template) bool { return t.GroupID == groupID }, func(a, b *recurring.Template) int {
		return cmp.Compare(a.ID, b.ID)
	}), nil
}

// ListDue matches the Postgres filter and ordering
func (v *Recurring) ListDue(_ context.Context, today time.Time) ([]*recurring.Template, error) {
	due := func(t *recurring.Template) bool {
		return t.Active &&
			!t.NextExecutionDate.After(today) &&
			!t.StartDate.After(today) &&
			(t.EndDate == nil || !t.EndDate.Before(today))
	}
	return v.list(due, func(a, b *recurring.Template) int {
		if c := a.NextExecutionDate.Compare(b.NextExecutionDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}), nil
}

func (v *Recurring) list(keep func(*recurring.Template) bool, order func(a, b *recurring.Template) int) []*recurring.Template {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var out []*recurring.Template
	for _, t := range v.s.templates {
		if keep(t) {
			copied := *t
			out = append(out, &copied)
		}
	}
	slices.SortFunc(out, order)
	return out
}

func (v *Recurring) AdvanceSchedule(_ context.Context, id int64, due, next time.Time, active bool) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	t, ok := v.s.templates[id]
	if !ok || !t.NextExecutionDate.Equal(due) {
		return false, nil
	}
	t.NextExecutionDate = next
	t.Active = active
	return true, nil
}

func (v *Recurring) Delete(_ context.Context, id int64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.templates[id]; !ok {
		return recurring.ErrTemplateNotFound
	}
	delete(v.s.templates, id)
	return nil
}
