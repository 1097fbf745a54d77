package domain

import "sort"

// MinTasksForSponsorship is the number of completed catalog tasks required
// before a mint can be sponsored.
const MinTasksForSponsorship = 2

type TaskID int

type Task struct {
	ID          TaskID
	Title       string
	Description string
	Kind        string
}

// TaskCompletionSet holds the distinct task ids an account completed during
// its current connection.
type TaskCompletionSet struct {
	ids map[TaskID]struct{}
}

func NewTaskCompletionSet(ids ...TaskID) TaskCompletionSet {
	set := TaskCompletionSet{ids: make(map[TaskID]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[id] = struct{}{}
	}

	return set
}

// Add reports whether id was newly added.
func (s *TaskCompletionSet) Add(id TaskID) bool {
	if s.ids == nil {
		s.ids = map[TaskID]struct{}{}
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s TaskCompletionSet) Has(id TaskID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s TaskCompletionSet) Size() int {
	return len(s.ids)
}

// IDs returns the completed ids in ascending order.
func (s TaskCompletionSet) IDs() []TaskID {
	ids := make([]TaskID, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s TaskCompletionSet) MeetsSponsorshipThreshold() bool {
	return s.Size() >= MinTasksForSponsorship
}
