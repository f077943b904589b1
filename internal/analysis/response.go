// Package analysis talks to the remote generation service and owns the
// structured response it returns.
package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryKnowledge   Category = "knowledge"
	CategoryInformation Category = "information"
	CategorySchedule    Category = "schedule"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusIgnored   Status = "ignored"
)

// ParseStatus accepts the canonical values and the legacy labels stored by older clients.
func ParseStatus(s string) (Status, error) {
	switch strings.TrimSpace(s) {
	case "pending", "待处理":
		return StatusPending, nil
	case "completed", "已处理":
		return StatusCompleted, nil
	case "ignored", "已忽略":
		return StatusIgnored, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Response is the persisted form of one analysis result. The discriminator is
// advisory: any subset of the three reports may be present.
type Response struct {
	MostPossibleCategory string       `json:"mostPossibleCategory"`
	Knowledge            *Knowledge   `json:"knowledge,omitempty"`
	Information          *Information `json:"information,omitempty"`
	Schedule             *Schedule    `json:"schedule,omitempty"`
}

type Knowledge struct {
	Title          string   `json:"title"`
	KnowledgeItems []Item   `json:"knowledgeItems"`
	RelatedItems   []string `json:"relatedItems"`
	Summary        string   `json:"summary"`
	Tags           []string `json:"tags"`
	Category       string   `json:"category"`
}

type Information struct {
	Title            string   `json:"title"`
	InformationItems []Item   `json:"informationItems"`
	RelatedItems     []string `json:"relatedItems"`
	PostType         string   `json:"postType"`
	Summary          string   `json:"summary"`
	Tags             []string `json:"tags"`
	Category         string   `json:"category"`
}

type Item struct {
	ID      int    `json:"id"`
	Header  string `json:"header"`
	Content string `json:"content"`
	Node    *Node  `json:"node,omitempty"`
}

type Node struct {
	TargetID     int    `json:"targetId"`
	Relationship string `json:"relationship"`
}

type Schedule struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Tasks    []Task `json:"tasks"`
}

type Task struct {
	ID               string   `json:"id"`
	StartTime        string   `json:"startTime"`
	EndTime          string   `json:"endTime"`
	People           []string `json:"people"`
	Theme            string   `json:"theme"`
	CoreTasks        []string `json:"coreTasks"`
	Position         []string `json:"position"`
	Tags             []string `json:"tags"`
	Category         string   `json:"category"`
	SuggestedActions []string `json:"suggestedActions"`
	Status           Status   `json:"status"`
}

// Category maps the discriminator onto a known report kind. Unknown values read as knowledge.
func (r *Response) Category() Category {
	switch strings.ToLower(strings.TrimSpace(r.MostPossibleCategory)) {
	case string(CategoryInformation):
		return CategoryInformation
	case string(CategorySchedule):
		return CategorySchedule
	default:
		return CategoryKnowledge
	}
}

// Title returns the title of the report named by the discriminator, falling
// back to information, knowledge and then schedule.
func (r *Response) Title() string {
	var primary string
	switch r.Category() {
	case CategoryInformation:
		primary = r.informationTitle()
	case CategorySchedule:
		primary = r.scheduleTitle()
	default:
		primary = r.knowledgeTitle()
	}
	for _, t := range []string{primary, r.informationTitle(), r.knowledgeTitle(), r.scheduleTitle()} {
		if strings.TrimSpace(t) != "" {
			return t
		}
	}
	return ""
}

func (r *Response) knowledgeTitle() string {
	if r.Knowledge == nil {
		return ""
	}
	return r.Knowledge.Title
}

func (r *Response) informationTitle() string {
	if r.Information == nil {
		return ""
	}
	return r.Information.Title
}

func (r *Response) scheduleTitle() string {
	if r.Schedule == nil {
		return ""
	}
	return r.Schedule.Title
}

// Tasks returns the schedule entries, or nil without a schedule report.
func (r *Response) Tasks() []Task {
	if r.Schedule == nil {
		return nil
	}
	return r.Schedule.Tasks
}

// AllTags is the union of knowledge, information and task tags in first-seen order.
func (r *Response) AllTags() []string {
	var groups [][]string
	if r.Knowledge != nil {
		groups = append(groups, r.Knowledge.Tags)
	}
	if r.Information != nil {
		groups = append(groups, r.Information.Tags)
	}
	for _, t := range r.Tasks() {
		groups = append(groups, t.Tags)
	}
	return MergeTags(groups...)
}

// MergeTags concatenates the lists, dropping blanks and repeats.
func MergeTags(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range lists {
		for _, t := range l {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func (t Task) StartDate() (time.Time, error) { return parseTime(t.StartTime) }
func (t Task) EndDate() (time.Time, error)   { return parseTime(t.EndTime) }

var errNoTime = errors.New("time not set")

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errNoTime
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable time %q", s)
}

// DeriveTaskID is the identifier used when the service omits one. Identical
// time, theme and category always produce the same id.
func DeriveTaskID(startTime, endTime, theme, category string) string {
	sum := sha256.Sum256([]byte(startTime + "-" + endTime + "-" + theme + "-" + category))
	h := hex.EncodeToString(sum[:16])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

// ResolvedID returns the supplied id, or the derived one.
func (t Task) ResolvedID() string {
	if strings.TrimSpace(t.ID) != "" {
		return t.ID
	}
	return DeriveTaskID(t.StartTime, t.EndTime, t.Theme, t.Category)
}

// Encode writes the canonical wire form with task ids and statuses filled in,
// so the result always decodes. An unknown task status is an error. r is not modified.
func Encode(r *Response) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil response")
	}
	c := *r
	if r.Schedule != nil {
		sched := *r.Schedule
		sched.Tasks = append([]Task(nil), r.Schedule.Tasks...)
		c.Schedule = &sched
	}
	if err := normalize(&c); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return json.Marshal(&c)
}

// Decode reads canonical or legacy payloads. Tasks come back with ids and statuses filled in.
func Decode(data []byte) (*Response, error) {
	canonical, err := translateLegacy(data)
	if err != nil {
		return nil, err
	}
	var r Response
	if err := json.Unmarshal(canonical, &r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if err := normalize(&r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &r, nil
}

// normalize resolves task ids and canonicalizes statuses, defaulting to pending.
func normalize(r *Response) error {
	if r.Schedule == nil {
		return nil
	}
	for i := range r.Schedule.Tasks {
		t := &r.Schedule.Tasks[i]
		t.ID = t.ResolvedID()
		if t.Status == "" {
			t.Status = StatusPending
			continue
		}
		st, err := ParseStatus(string(t.Status))
		if err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
		t.Status = st
	}
	return nil
}
