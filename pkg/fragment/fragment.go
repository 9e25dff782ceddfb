// Package fragment implements the Fragment Extractor (C5): given one user
// utterance and its timestamp, calls the language model with a 10-slot
// prompt and parses back a structured Fragment.
package fragment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/agentmem/pkg/llmprovider"
	"github.com/tidwall/gjson"
)

// Slot is one of the ten optional hint slots, each carrying its own
// confidence.
type Slot struct {
	Value      string
	Confidence float64
}

// TimeBucket buckets the hour of day into one of four ranges (§3).
type TimeBucket string

const (
	BucketMorning   TimeBucket = "morning"
	BucketAfternoon TimeBucket = "afternoon"
	BucketEvening   TimeBucket = "evening"
	BucketNight     TimeBucket = "night"
)

func BucketFor(t time.Time) TimeBucket {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return BucketMorning
	case h >= 12 && h < 18:
		return BucketAfternoon
	case h >= 18 && h < 23:
		return BucketEvening
	default:
		return BucketNight
	}
}

// LongTermMemoryCategory is the category closed set for long_term_memories (§4.5).
type LongTermMemoryCategory string

const (
	CategoryIdentity   LongTermMemoryCategory = "identity"
	CategoryPreference LongTermMemoryCategory = "preference"
	CategoryStyle      LongTermMemoryCategory = "style"
	CategoryFact       LongTermMemoryCategory = "fact"
	CategoryTool       LongTermMemoryCategory = "tool"
)

// identityKeys is the closed KEY set for strict "KEY: VALUE" identity
// entries (§4.5) — free-text identity strings are rejected.
var identityKeys = map[string]bool{
	"name": true, "nickname": true, "role": true, "company": true, "location": true,
}

// LongTermMemory is one candidate derived from the fragment for persistence.
type LongTermMemory struct {
	Content  string
	Category LongTermMemoryCategory
}

// Fragment is the ephemeral 10-slot structured extraction from one utterance.
type Fragment struct {
	Task        *Slot
	Time        *Slot
	Emotion     *Slot
	Relation    *Slot
	Todo        *Slot
	Preference  *Slot
	Topic       *Slot
	Constraint  *Slot
	Tool        *Slot
	Identity    *Slot
	Goal        *Slot
	Confidence  float64
	TimeBucket  TimeBucket
	DayOfWeek   time.Weekday
	LongTerm    []LongTermMemory

	// ResolvedDeadline is set only when DeadlineRaw's phrase resolved
	// locally and unambiguously against the utterance's own timestamp
	// (§4.5). DeadlineRaw holds the model's raw deadline phrase either
	// way, so an ambiguous phrase is never silently dropped.
	ResolvedDeadline *time.Time
	DeadlineRaw      string
}

// Extractor calls the language model to produce a Fragment.
type Extractor struct {
	provider llmprovider.Provider
}

func New(provider llmprovider.Provider) *Extractor {
	return &Extractor{provider: provider}
}

const systemPrompt = `Extract a structured fragment from one user message.
Return a JSON object with optional string fields: task, time, emotion,
relation, todo, preference, topic, constraint, tool, identity, goal — each
may instead be an object {"value": "...", "confidence": 0..1}.
Identity values must use a strict "KEY: VALUE" format where KEY is one of:
name, nickname, role, company, location. Reject any other identity phrasing.
Also return "long_term_memories": a list of {"content", "category"} where
category is one of identity, preference, style, fact, tool.
If the message names a deadline or time commitment, return "deadline" as
the raw phrase verbatim ("tomorrow", "next Wednesday", "周三前"...) — do
not compute a date yourself; omit "deadline" if none is present.`

// Extract calls the model and parses its reply into a Fragment. A parse
// failure yields a zero-value Fragment with confidence 0, not an error —
// fragment extraction degrades the same way fact extraction does (§7).
func (e *Extractor) Extract(ctx context.Context, message string, at time.Time) (Fragment, error) {
	frag := Fragment{TimeBucket: BucketFor(at), DayOfWeek: at.Weekday()}

	reply, err := e.provider.CreateMessage(ctx,
		[]llmprovider.Message{{Role: "user", Content: fmt.Sprintf("Message (sent %s): %s", at.Format(time.RFC3339), message)}},
		systemPrompt)
	if err != nil {
		return frag, nil
	}

	root := gjson.Parse(reply.Content)
	if !root.Exists() || !root.IsObject() {
		return frag, nil
	}

	var sum float64
	var n int
	assign := func(key string) *Slot {
		v := root.Get(key)
		if !v.Exists() {
			return nil
		}
		if v.IsObject() {
			val := v.Get("value").String()
			if val == "" {
				return nil
			}
			conf := v.Get("confidence").Float()
			sum += conf
			n++
			return &Slot{Value: val, Confidence: conf}
		}
		s := v.String()
		if s == "" {
			return nil
		}
		sum += 1
		n++
		return &Slot{Value: s, Confidence: 1}
	}

	frag.Task = assign("task")
	frag.Time = assign("time")
	frag.Emotion = assign("emotion")
	frag.Relation = assign("relation")
	frag.Todo = assign("todo")
	frag.Preference = assign("preference")
	frag.Topic = assign("topic")
	frag.Constraint = assign("constraint")
	frag.Tool = assign("tool")
	frag.Goal = assign("goal")
	frag.Identity = assignIdentity(root.Get("identity"))

	if n > 0 {
		frag.Confidence = sum / float64(n)
	}

	root.Get("long_term_memories").ForEach(func(_, v gjson.Result) bool {
		content := v.Get("content").String()
		category := LongTermMemoryCategory(v.Get("category").String())
		if content == "" {
			return true
		}
		switch category {
		case CategoryIdentity, CategoryPreference, CategoryStyle, CategoryFact, CategoryTool:
			frag.LongTerm = append(frag.LongTerm, LongTermMemory{Content: content, Category: category})
		}
		return true
	})

	if dl := root.Get("deadline"); dl.Exists() {
		frag.DeadlineRaw = dl.String()
		if t, ok := resolveDeadlineLocally(frag.DeadlineRaw, at); ok {
			frag.ResolvedDeadline = &t
		}
	}

	return frag, nil
}

// weekdayTokens maps recognised relative-date tokens (English names plus
// the Chinese tokens §4.5 itself uses as examples) to a weekday and
// whether the phrase explicitly pushes to the following week ("next
// Wednesday", "下周三"). Resolution is local and deterministic — the
// model is never trusted to do the date arithmetic itself (§4.5, §9).
var weekdayTokens = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"周日": time.Sunday, "周天": time.Sunday, "星期日": time.Sunday, "星期天": time.Sunday,
	"周一": time.Monday, "星期一": time.Monday,
	"周二": time.Tuesday, "星期二": time.Tuesday,
	"周三": time.Wednesday, "星期三": time.Wednesday,
	"周四": time.Thursday, "星期四": time.Thursday,
	"周五": time.Friday, "星期五": time.Friday,
	"周六": time.Saturday, "星期六": time.Saturday,
}

// resolveDeadlineLocally resolves an unambiguous relative-date phrase
// against at, midnight-normalised in at's location. Phrases it does not
// recognise are left unresolved (ok=false) — the caller keeps the raw
// phrase in DeadlineRaw rather than guessing.
func resolveDeadlineLocally(phrase string, at time.Time) (time.Time, bool) {
	today := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	lower := strings.ToLower(strings.TrimSpace(phrase))

	switch {
	case lower == "today" || strings.Contains(phrase, "今天"):
		return today, true
	case lower == "tomorrow" || strings.Contains(phrase, "明天"):
		return today.AddDate(0, 0, 1), true
	case strings.Contains(phrase, "后天"):
		return today.AddDate(0, 0, 2), true
	}

	nextWeek := strings.Contains(lower, "next ") || strings.Contains(phrase, "下周") || strings.Contains(phrase, "下星期")
	for token, wd := range weekdayTokens {
		if !strings.Contains(phrase, token) && !strings.Contains(lower, token) {
			continue
		}
		days := int(wd - today.Weekday())
		if days <= 0 {
			days += 7
		}
		if nextWeek {
			days += 7
		}
		return today.AddDate(0, 0, days), true
	}

	return time.Time{}, false
}

func assignIdentity(v gjson.Result) *Slot {
	if !v.Exists() {
		return nil
	}
	var val string
	var conf float64 = 1
	if v.IsObject() {
		val = v.Get("value").String()
		conf = v.Get("confidence").Float()
	} else {
		val = v.String()
	}
	if !isStrictIdentity(val) {
		return nil
	}
	return &Slot{Value: val, Confidence: conf}
}

// isStrictIdentity enforces the closed "KEY: VALUE" format (§4.5).
func isStrictIdentity(s string) bool {
	for key := range identityKeys {
		prefix := key + ":"
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
