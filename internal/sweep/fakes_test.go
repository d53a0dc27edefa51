package sweep

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/cnii-sentinel/internal/progress"
	"github.com/JakeFAU/cnii-sentinel/internal/sentinel"
)

type staticZones []sentinel.Zone

func (s staticZones) Targets(extra string) []sentinel.Zone {
	out := append([]sentinel.Zone(nil), s...)
	if extra != "" && extra != "string" {
		out = append(out, sentinel.Zone{Name: extra})
	}
	return out
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string][]sentinel.SearchResult
	errs    map[string]error
	panics  map[string]bool
	onFetch func(zone sentinel.Zone)
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, zone sentinel.Zone) ([]sentinel.SearchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, zone.Name)
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(zone)
	}
	if f.panics[zone.Name] {
		panic("fetch exploded")
	}
	if err := f.errs[zone.Name]; err != nil {
		return nil, err
	}
	if res, ok := f.results[zone.Name]; ok {
		return res, nil
	}
	return []sentinel.SearchResult{{Index: 1, Title: zone.Name + " news", URL: "https://news.example/" + zone.Name, Content: "Road works near " + zone.Name}}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeExtractor struct {
	mu    sync.Mutex
	risks map[string][]sentinel.Risk
	texts []string
}

func (f *fakeExtractor) Extract(_ context.Context, zone sentinel.Zone, text string) []sentinel.Risk {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return append([]sentinel.Risk(nil), f.risks[zone.Name]...)
}

type fakeResolver struct {
	coords sentinel.Coordinates
}

func (f fakeResolver) Resolve(context.Context, string, sentinel.Zone) sentinel.Coordinates {
	return f.coords
}

type alertCall struct {
	Level    sentinel.Severity
	Score    int
	Location string
	Summary  string
}

type recordingAlerts struct {
	mu    sync.Mutex
	calls []alertCall
}

func (r *recordingAlerts) Notify(_ context.Context, level sentinel.Severity, score int, location, summary string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, alertCall{Level: level, Score: score, Location: location, Summary: summary})
	return true
}

func (r *recordingAlerts) Calls() []alertCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alertCall(nil), r.calls...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
	return nil
}

func (r *recordingNotifier) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type failingGeocoder struct{}

func (failingGeocoder) Geocode(context.Context, string) (sentinel.Coordinates, bool, error) {
	return sentinel.Coordinates{}, false, errors.New("geocoder unavailable")
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) Stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Stage)
	}
	return out
}

func (r *recordingEmitter) ByStage(stage progress.Stage) []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []progress.Event
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

type sequenceIDs struct {
	mu  sync.Mutex
	ids []string
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return "", errors.New("exhausted")
	}
	id := s.ids[0]
	s.ids = s.ids[1:]
	return id, nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("broker down")
}
