package state

import (
	"errors"
	"sort"
	"time"
)

var (
	ErrAlreadyFollowing = errors.New("state: subject already followed")
	ErrNotFollowing     = errors.New("state: subject not actively followed")
)

const DateLayout = "2006-01-02"

// FollowRecord is one follow. Records are never removed; unfollowing only
// sets the flag and timestamp.
type FollowRecord struct {
	SubjectID    string     `json:"subject_id"`
	DisplayName  string     `json:"display_name"`
	Category     string     `json:"category"`
	FollowedAt   time.Time  `json:"followed_at"`
	Unfollowed   bool       `json:"unfollowed"`
	UnfollowedAt *time.Time `json:"unfollowed_at,omitempty"`
}

type DayStat struct {
	Followed   int `json:"followed"`
	Unfollowed int `json:"unfollowed"`
}

// CategoryStat keeps CurrentlyFollowing == TotalFollowed - Unfollowed.
type CategoryStat struct {
	TotalFollowed      int `json:"total_followed"`
	CurrentlyFollowing int `json:"currently_following"`
	Unfollowed         int `json:"unfollowed"`
}

// FollowBook is the follows document.
type FollowBook struct {
	Records    []FollowRecord          `json:"records"`
	Daily      map[string]DayStat      `json:"daily_stats"`
	Categories map[string]CategoryStat `json:"category_stats"`
}

type Totals struct {
	TotalFollowed      int `json:"total_followed"`
	CurrentlyFollowing int `json:"currently_following"`
	TotalUnfollowed    int `json:"total_unfollowed"`
}

func NewFollowBook() *FollowBook {
	return &FollowBook{
		Daily:      map[string]DayStat{},
		Categories: map[string]CategoryStat{},
	}
}

func (b *FollowBook) normalize() {
	if b.Daily == nil {
		b.Daily = map[string]DayStat{}
	}
	if b.Categories == nil {
		b.Categories = map[string]CategoryStat{}
	}
}

// activeIndex returns the index of the subject's live record, or -1.
func (b *FollowBook) activeIndex(subjectID string) int {
	for i := len(b.Records) - 1; i >= 0; i-- {
		r := b.Records[i]
		if r.SubjectID == subjectID && !r.Unfollowed {
			return i
		}
	}
	return -1
}

// IsFollowing reports whether subjectID has a record that is not unfollowed.
func (b *FollowBook) IsFollowing(subjectID string) bool { return b.activeIndex(subjectID) >= 0 }

// AddFollow appends a record and bumps the day and category counters.
// loc selects the calendar day the follow is counted on.
func (b *FollowBook) AddFollow(rec FollowRecord, loc *time.Location) error {
	b.normalize()
	if b.IsFollowing(rec.SubjectID) {
		return ErrAlreadyFollowing
	}
	if rec.Category == "" {
		rec.Category = "general"
	}
	rec.Unfollowed = false
	rec.UnfollowedAt = nil
	b.Records = append(b.Records, rec)

	day := rec.FollowedAt.In(loc).Format(DateLayout)
	ds := b.Daily[day]
	ds.Followed++
	b.Daily[day] = ds

	cs := b.Categories[rec.Category]
	cs.TotalFollowed++
	cs.CurrentlyFollowing++
	b.Categories[rec.Category] = cs
	return nil
}

// MarkUnfollowed flags the subject's live record and moves it from
// currently_following to unfollowed in its category.
func (b *FollowBook) MarkUnfollowed(subjectID string, at time.Time, loc *time.Location) error {
	b.normalize()
	i := b.activeIndex(subjectID)
	if i < 0 {
		return ErrNotFollowing
	}
	at = at.UTC()
	b.Records[i].Unfollowed = true
	b.Records[i].UnfollowedAt = &at

	day := at.In(loc).Format(DateLayout)
	ds := b.Daily[day]
	ds.Unfollowed++
	b.Daily[day] = ds

	cat := b.Records[i].Category
	cs := b.Categories[cat]
	if cs.CurrentlyFollowing > 0 {
		cs.CurrentlyFollowing--
	}
	cs.Unfollowed++
	b.Categories[cat] = cs
	return nil
}

// Active returns every live record, oldest first.
func (b *FollowBook) Active() []FollowRecord {
	out := make([]FollowRecord, 0, len(b.Records))
	for _, r := range b.Records {
		if !r.Unfollowed {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FollowedAt.Before(out[j].FollowedAt) })
	return out
}

// DueForUnfollow returns live records followed longer than threshold ago.
func (b *FollowBook) DueForUnfollow(now time.Time, threshold time.Duration) []FollowRecord {
	var out []FollowRecord
	for _, r := range b.Active() {
		if now.Sub(r.FollowedAt) > threshold {
			out = append(out, r)
		}
	}
	return out
}

// Totals sums the category counters.
func (b *FollowBook) Totals() Totals {
	var t Totals
	for _, cs := range b.Categories {
		t.TotalFollowed += cs.TotalFollowed
		t.CurrentlyFollowing += cs.CurrentlyFollowing
		t.TotalUnfollowed += cs.Unfollowed
	}
	return t
}
