package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/sigmundftw/educabot/internal/config"
	"github.com/sigmundftw/educabot/internal/dialog"
	"github.com/sigmundftw/educabot/internal/logger"
	"github.com/sigmundftw/educabot/internal/partition"
	"github.com/sigmundftw/educabot/internal/repo"
	"github.com/sigmundftw/educabot/internal/slack"
	"github.com/sigmundftw/educabot/internal/store"
)

type fakeChat struct {
	mu            sync.Mutex
	openDialogFn  func(context.Context, string, dialog.Dialog) error
	postMessageFn func(context.Context, string, slack.Message) error
	dialogs       []dialog.Dialog
	messages      []slack.Message
}

func (f *fakeChat) OpenDialog(ctx context.Context, triggerID string, d dialog.Dialog) error {
	f.mu.Lock()
	f.dialogs = append(f.dialogs, d)
	f.mu.Unlock()
	if f.openDialogFn != nil {
		return f.openDialogFn(ctx, triggerID, d)
	}
	return nil
}

func (f *fakeChat) PostMessage(ctx context.Context, channelID string, msg slack.Message) error {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
	if f.postMessageFn != nil {
		return f.postMessageFn(ctx, channelID, msg)
	}
	return nil
}

func (f *fakeChat) lastDialog(t *testing.T) dialog.Dialog {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.dialogs) == 0 {
		t.Fatal("expected a dialog to be opened")
	}
	return f.dialogs[len(f.dialogs)-1]
}

func (f *fakeChat) lastMessage(t *testing.T) slack.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("expected a message to be posted")
	}
	return f.messages[len(f.messages)-1]
}

type testEnv struct {
	svc     *Service
	chat    *fakeChat
	backend *store.RedisBackend
	redis   *miniredis.Miniredis
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	s := miniredis.RunT(t)
	backend, err := store.NewRedisBackend("redis://"+s.Addr(), "test:")
	if err != nil {
		t.Fatalf("failed to create redis backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	chat := &fakeChat{}
	svc := New(config.Config{StorePageSize: 2}, backend, chat, logger.Nop())
	return testEnv{svc: svc, chat: chat, backend: backend, redis: s}
}

func command(text string) slack.Command {
	return slack.Command{TeamID: "T1", ChannelID: "C1", UserID: "U1", TriggerID: "trig", Text: text}
}

func proposeSubmission(name, url string) slack.Interaction {
	return slack.Interaction{
		Type:       slack.InteractionDialogSubmission,
		CallbackID: dialog.CallbackPropose,
		Submission: map[string]string{"name": name, "url": url, "notes": "à voir"},
		Team:       slack.Ref{ID: "T1"},
		Channel:    slack.Ref{ID: "C1"},
		User:       slack.Ref{ID: "U1"},
	}
}

func planSubmission(state, date, video string) slack.Interaction {
	return slack.Interaction{
		Type:       slack.InteractionDialogSubmission,
		CallbackID: dialog.CallbackPlan,
		State:      state,
		Submission: map[string]string{"date": date, "owner": "U9", "video": video},
		Team:       slack.Ref{ID: "T1"},
		Channel:    slack.Ref{ID: "C1"},
		User:       slack.Ref{ID: "U1"},
	}
}

func mustPropose(t *testing.T, env testEnv, name string) store.Proposal {
	t.Helper()
	fieldErrors, err := env.svc.Submit(context.Background(), proposeSubmission(name, "http://example.com/"+name))
	if err != nil || len(fieldErrors) > 0 {
		t.Fatalf("propose %s failed: errs=%v err=%v", name, fieldErrors, err)
	}
	all, err := repo.NewProposals(env.backend, 0).ListActive(context.Background(), partition.Derive("T1", "C1"))
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	return all[len(all)-1]
}

func TestProposeOpensPrefilledDialog(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.Propose(context.Background(), command("Go generics")); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	d := env.chat.lastDialog(t)
	if d.CallbackID != dialog.CallbackPropose {
		t.Errorf("unexpected callback %q", d.CallbackID)
	}
	name, _ := d.Element(dialog.FieldName)
	if name.Value != "Go generics" {
		t.Errorf("expected prefilled name, got %q", name.Value)
	}

	known, err := repo.NewChannels(env.backend).List(context.Background(), "T1")
	if err != nil {
		t.Fatalf("List channels failed: %v", err)
	}
	if len(known) != 1 || known[0].ChannelID != "C1" {
		t.Errorf("expected channel activity for C1, got %+v", known)
	}
}

func TestProposeCutsLongDefaultName(t *testing.T) {
	env := newTestEnv(t)

	text := strings.Repeat("x", dialog.NameMaxLength+10)
	if err := env.svc.Propose(context.Background(), command(text)); err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	name, _ := env.chat.lastDialog(t).Element(dialog.FieldName)
	if name.Value != text[:dialog.NameMaxLength] {
		t.Errorf("expected default cut to %d characters, got %q", dialog.NameMaxLength, name.Value)
	}
}

func TestProposeWrapsDialogFailure(t *testing.T) {
	env := newTestEnv(t)
	env.chat.openDialogFn = func(context.Context, string, dialog.Dialog) error {
		return &slack.APIError{Method: "dialog.open", Code: "expired_trigger_id"}
	}

	err := env.svc.Propose(context.Background(), command(""))
	var apiErr *slack.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestSubmitProposalCreatesAndAnnounces(t *testing.T) {
	env := newTestEnv(t)

	created := mustPropose(t, env, "Rust vs Go")
	if created.URL != "http://example.com/Rust vs Go" || created.Notes != "à voir" || created.ProposedBy != "U1" {
		t.Errorf("unexpected proposal %+v", created)
	}
	if created.PartitionKey != partition.Derive("T1", "C1").String() {
		t.Errorf("unexpected partition %q", created.PartitionKey)
	}
	msg := env.chat.lastMessage(t)
	if !strings.Contains(msg.Text, "Rust vs Go") || !strings.Contains(msg.Text, "<@U1>") {
		t.Errorf("unexpected announcement %q", msg.Text)
	}
}

func TestSubmitProposalValidatesFields(t *testing.T) {
	env := newTestEnv(t)

	fieldErrors, err := env.svc.Submit(context.Background(), proposeSubmission("", ""))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(fieldErrors) != 2 || fieldErrors[0].Name != "name" || fieldErrors[1].Name != "url" {
		t.Errorf("unexpected field errors %+v", fieldErrors)
	}

	long := strings.Repeat("é", dialog.NameMaxLength+1)
	fieldErrors, err = env.svc.Submit(context.Background(), proposeSubmission(long, "http://x"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(fieldErrors) != 1 || fieldErrors[0].Name != "name" {
		t.Errorf("expected name length error, got %+v", fieldErrors)
	}

	exact := strings.Repeat("é", dialog.NameMaxLength)
	fieldErrors, err = env.svc.Submit(context.Background(), proposeSubmission(exact, "http://x"))
	if err != nil || len(fieldErrors) != 0 {
		t.Errorf("a name of exactly %d runes must pass: errs=%v err=%v", dialog.NameMaxLength, fieldErrors, err)
	}
}

func TestSubmitProposalWithoutChannelIsNotAStoreFailure(t *testing.T) {
	env := newTestEnv(t)

	for name, mutate := range map[string]func(*slack.Interaction){
		"channel": func(i *slack.Interaction) { i.Channel = slack.Ref{} },
		"team":    func(i *slack.Interaction) { i.Team = slack.Ref{} },
	} {
		interaction := proposeSubmission("A", "http://a")
		mutate(&interaction)

		_, err := env.svc.Submit(context.Background(), interaction)
		if !errors.Is(err, store.ErrMissingKey) {
			t.Fatalf("%s: expected ErrMissingKey, got %v", name, err)
		}
		var storeErr *store.StoreError
		if errors.As(err, &storeErr) {
			t.Errorf("%s: a missing id must not look like a store outage: %v", name, err)
		}
		if status, code, _, _ := mapError(err); status != http.StatusBadRequest || code != "MISSING_KEY" {
			t.Errorf("%s: unexpected mapping %d %s", name, status, code)
		}
	}
	if len(env.chat.messages) != 0 {
		t.Error("nothing must be announced without a channel")
	}
}

func TestListRendersProposalsWithPlannedMarker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	empty, err := env.svc.List(ctx, command(""))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if empty.ResponseType != slack.ResponseEphemeral || len(empty.Blocks) != 0 {
		t.Errorf("unexpected empty listing %+v", empty)
	}

	mustPropose(t, env, "A")
	b := mustPropose(t, env, "B")
	mustPropose(t, env, "C")
	if _, err := repo.NewProposals(env.backend, 0).MarkPlanned(ctx, b, "plan_x"); err != nil {
		t.Fatalf("MarkPlanned failed: %v", err)
	}

	msg, err := env.svc.List(ctx, command(""))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	lines := strings.Split(msg.Text, "\n")
	var items []string
	for _, line := range lines {
		if strings.HasPrefix(line, "•") {
			items = append(items, line)
		}
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 listed proposals across pages, got %q", msg.Text)
	}
	if !strings.Contains(items[1], "|B>") || !strings.Contains(items[1], "planifié") {
		t.Errorf("expected B marked as planned, got %q", items[1])
	}
	if strings.Contains(items[0], "planifié") || strings.Contains(items[2], "planifié") {
		t.Errorf("only B is planned: %q", msg.Text)
	}
}

func TestPlanDialogOffersOnlyUnplannedProposals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.svc.Plan(ctx, command("")); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if _, ok := env.chat.lastDialog(t).Element(dialog.FieldVideo); ok {
		t.Error("video field must be omitted without proposals")
	}

	a := mustPropose(t, env, "A")
	b := mustPropose(t, env, "B")
	if _, err := repo.NewProposals(env.backend, 0).MarkPlanned(ctx, a, "plan_x"); err != nil {
		t.Fatalf("MarkPlanned failed: %v", err)
	}

	if err := env.svc.Plan(ctx, command("2026-11-03")); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	d := env.chat.lastDialog(t)
	if d.State != partition.Derive("T1", "C1").String() {
		t.Errorf("unexpected state %q", d.State)
	}
	date, _ := d.Element(dialog.FieldDate)
	if date.Value != "2026-11-03" {
		t.Errorf("expected default date, got %q", date.Value)
	}
	video, ok := d.Element(dialog.FieldVideo)
	if !ok || len(video.Options) != 1 || video.Options[0].Value != b.RowKey {
		t.Errorf("expected only B selectable, got %+v", video.Options)
	}
}

func TestPlanIgnoresNonDateText(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.Plan(context.Background(), command("next friday")); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	date, _ := env.chat.lastDialog(t).Element(dialog.FieldDate)
	if date.Value != "" {
		t.Errorf("expected no default date, got %q", date.Value)
	}
}

func TestSubmitPlanCreatesPlanAndMarksProposal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chosen := mustPropose(t, env, "A")
	key := partition.Derive("T1", "C1")

	fieldErrors, err := env.svc.Submit(ctx, planSubmission(key.String(), "2026-10-23", chosen.RowKey))
	if err != nil || len(fieldErrors) > 0 {
		t.Fatalf("Submit failed: errs=%v err=%v", fieldErrors, err)
	}

	got, found, err := repo.NewProposals(env.backend, 0).Get(ctx, key, chosen.RowKey)
	if err != nil || !found {
		t.Fatalf("Get failed: found=%v err=%v", found, err)
	}
	if !strings.HasPrefix(got.PlannedIn, "plan_") {
		t.Fatalf("expected proposal to reference a plan, got %q", got.PlannedIn)
	}
	plan, found, err := repo.NewPlans(env.backend).Get(ctx, key, got.PlannedIn)
	if err != nil || !found {
		t.Fatalf("referenced plan missing: found=%v err=%v", found, err)
	}
	if plan.Date != "2026-10-23" || plan.Owner != "U9" || plan.Video != chosen.RowKey {
		t.Errorf("unexpected plan %+v", plan)
	}
	if msg := env.chat.lastMessage(t); !strings.Contains(msg.Text, "2026-10-23") || !strings.Contains(msg.Text, "<@U9>") {
		t.Errorf("unexpected plan announcement %q", msg.Text)
	}
}

func TestSubmitPlanWithoutVideo(t *testing.T) {
	env := newTestEnv(t)
	key := partition.Derive("T1", "C1")

	fieldErrors, err := env.svc.Submit(context.Background(), planSubmission(key.String(), "2026-10-23", ""))
	if err != nil || len(fieldErrors) > 0 {
		t.Fatalf("Submit failed: errs=%v err=%v", fieldErrors, err)
	}
	if msg := env.chat.lastMessage(t); !strings.Contains(msg.Text, "vote") {
		t.Errorf("expected a vote announcement, got %q", msg.Text)
	}
}

func TestSubmitPlanFieldErrors(t *testing.T) {
	env := newTestEnv(t)
	key := partition.Derive("T1", "C1")

	fieldErrors, err := env.svc.Submit(context.Background(), planSubmission(key.String(), "23/10/2026", ""))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(fieldErrors) != 1 || fieldErrors[0].Name != "date" {
		t.Errorf("expected date error, got %+v", fieldErrors)
	}

	fieldErrors, err = env.svc.Submit(context.Background(), planSubmission(key.String(), "2026-10-23", "prop_gone"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(fieldErrors) != 1 || fieldErrors[0].Name != "video" {
		t.Errorf("expected video error, got %+v", fieldErrors)
	}
	if len(env.chat.messages) != 0 {
		t.Error("nothing must be announced on field errors")
	}
}

func TestSubmitPlanRejectsForeignState(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Submit(context.Background(), planSubmission("not-a-partition", "2026-10-23", ""))
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_STATE" || domainErr.Status != http.StatusBadRequest {
		t.Fatalf("expected INVALID_STATE, got %v", err)
	}
}

func TestSubmitRejectsUnknownInteractions(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]slack.Interaction{
		"UNSUPPORTED_INTERACTION": {Type: "block_actions", CallbackID: dialog.CallbackPropose},
		"UNKNOWN_CALLBACK":        {Type: slack.InteractionDialogSubmission, CallbackID: "vote"},
	}
	for code, interaction := range cases {
		_, err := env.svc.Submit(context.Background(), interaction)
		var domainErr *DomainError
		if !errors.As(err, &domainErr) || domainErr.Code != code {
			t.Errorf("expected %s, got %v", code, err)
		}
	}
}

func TestStoreFailuresSurfaceAsStoreErrors(t *testing.T) {
	env := newTestEnv(t)
	env.redis.Close()

	_, err := env.svc.List(context.Background(), command(""))
	var storeErr *store.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if status, code, _, _ := mapError(err); status != http.StatusInternalServerError || code != "STORE_UNAVAILABLE" {
		t.Errorf("unexpected mapping %d %s", status, code)
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domainError(http.StatusBadRequest, "X", "x", nil), http.StatusBadRequest, "X"},
		{&store.SchemaError{Entity: "proposal", Attribute: "name", RowKey: "r"}, http.StatusInternalServerError, "CORRUPT_RECORD"},
		{&slack.APIError{Method: "chat.postMessage", Code: "channel_not_found"}, http.StatusBadGateway, "CHAT_API_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "SERVER_ERROR"},
	}
	for _, tc := range cases {
		status, code, _, _ := mapError(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("mapError(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
