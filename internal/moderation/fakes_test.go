package moderation

import (
	"context"
	"errors"
	"sync"

	"github.com/agora-community/agora/internal/classifier"
	"github.com/agora-community/agora/internal/models"
	"github.com/agora-community/agora/internal/notify"
)

type fakeTargets struct {
	mu            sync.Mutex
	items         map[string]*Target
	commentCounts map[string]int
	updateErr     error
	failUpdates   int // number of UpdateTargetIf calls to fail
}

func newFakeTargets(targets ...*Target) *fakeTargets {
	f := &fakeTargets{items: map[string]*Target{}, commentCounts: map[string]int{}}
	for _, t := range targets {
		f.items[string(t.Type)+"_"+t.ID] = t
	}
	return f
}

func (f *fakeTargets) get(typ models.TargetType, id string) *Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[string(typ)+"_"+id]
}

func (f *fakeTargets) GetTarget(_ context.Context, typ models.TargetType, id string) (*Target, error) {
	t := f.get(typ, id)
	if t == nil {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTargets) apply(t *Target, p Patch) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.AIReason != nil {
		t.AIReason = *p.AIReason
	}
	if p.ReviewRequested != nil {
		t.ReviewRequested = *p.ReviewRequested
	}
	if p.ReportCount != nil {
		t.ReportCount = *p.ReportCount
	}
}

func (f *fakeTargets) UpdateTarget(_ context.Context, typ models.TargetType, id string, p Patch) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	t := f.get(typ, id)
	if t == nil {
		return errors.New("not found")
	}
	f.apply(t, p)
	return nil
}

func (f *fakeTargets) UpdateTargetIf(_ context.Context, typ models.TargetType, id string, expected models.ModerationStatus, p Patch) (bool, error) {
	f.mu.Lock()
	if f.failUpdates > 0 {
		f.failUpdates--
		f.mu.Unlock()
		return false, errors.New("write failed")
	}
	f.mu.Unlock()
	t := f.get(typ, id)
	if t == nil || t.Status != expected {
		return false, nil
	}
	f.apply(t, p)
	return true, nil
}

func (f *fakeTargets) IncrementCommentCount(_ context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentCounts[postID]++
	return nil
}

func (f *fakeTargets) ListTargets(_ context.Context, typ models.TargetType, filter Filter, limit int) ([]*Target, error) {
	var out []*Target
	for _, t := range f.items {
		if t.Type != typ {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.ReviewRequested != nil && t.ReviewRequested != *filter.ReviewRequested {
			continue
		}
		if filter.Reported && t.ReportCount == 0 {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

type fakeReports struct {
	pending  []*models.Report
	resolved []string
}

func (f *fakeReports) PendingReports(_ context.Context, typ models.TargetType, ids []string) ([]*models.Report, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*models.Report
	for _, r := range f.pending {
		if r.TargetType == typ && want[r.TargetID] && r.Status == models.ReportPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReports) ResolveReports(_ context.Context, ids []string) error {
	f.resolved = append(f.resolved, ids...)
	for _, r := range f.pending {
		for _, id := range ids {
			if r.ID == id {
				r.Status = models.ReportReviewed
			}
		}
	}
	return nil
}

type fakeMessages struct {
	items map[string]*models.Notification
}

func (f *fakeMessages) GetNotification(_ context.Context, id string) (*models.Notification, error) {
	return f.items[id], nil
}

func (f *fakeMessages) SetNotificationStatus(_ context.Context, id string, status models.NotificationStatus) error {
	if n := f.items[id]; n != nil {
		n.Status = status
	}
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (r *recordingNotifier) Emit(_ context.Context, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
}

func (r *recordingNotifier) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.Title)
	}
	return out
}

type recordingPenalizer struct {
	mu     sync.Mutex
	deltas map[string]int
}

func (p *recordingPenalizer) ApplyDelta(_ context.Context, userID string, delta int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deltas == nil {
		p.deltas = map[string]int{}
	}
	p.deltas[userID] += delta
	return nil
}

type stubClassifier struct {
	verdict classifier.Verdict
	err     error
	calls   int
}

func (s *stubClassifier) Classify(_ context.Context, _ string, _ []string) (classifier.Verdict, error) {
	s.calls++
	return s.verdict, s.err
}

type harness struct {
	targets    *fakeTargets
	reports    *fakeReports
	messages   *fakeMessages
	notifier   *recordingNotifier
	penalizer  *recordingPenalizer
	classifier *stubClassifier
	svc        *Service
}

func newHarness(targets ...*Target) *harness {
	h := &harness{
		targets:    newFakeTargets(targets...),
		reports:    &fakeReports{},
		messages:   &fakeMessages{items: map[string]*models.Notification{}},
		notifier:   &recordingNotifier{},
		penalizer:  &recordingPenalizer{},
		classifier: &stubClassifier{},
	}
	h.svc = NewService(h.targets, h.reports, h.messages, h.notifier, h.penalizer, h.classifier)
	return h
}
