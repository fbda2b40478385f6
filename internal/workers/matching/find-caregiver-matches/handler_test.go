package findcaregivermatches

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"caring-compass-workers/internal/common/aws"
	"caring-compass-workers/internal/common/config"
	"caring-compass-workers/internal/common/database"
	"caring-compass-workers/internal/common/errors"
	"caring-compass-workers/internal/common/logger"
	"caring-compass-workers/internal/matching"

	"github.com/DATA-DOG/go-sqlmock"
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockSESService struct {
	mu            sync.Mutex
	sent          []*ses.SendEmailInput
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.mu.Lock()
	m.sent = append(m.sent, params)
	m.mu.Unlock()
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{MessageId: awssdk.String(uuid.New().String())}, nil
}

func (m *MockSESService) Sent() []*ses.SendEmailInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ses.SendEmailInput(nil), m.sent...)
}

type MockSNSService struct {
	published []*sns.PublishInput
}

func (m *MockSNSService) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.published = append(m.published, params)
	return &sns.PublishOutput{MessageId: awssdk.String("sms-1")}, nil
}

type fakeCache struct {
	days []time.Time
}

func (f *fakeCache) Invalidate(_ context.Context, day time.Time) error {
	f.days = append(f.days, day)
	return nil
}

type fakeAuditor struct {
	runs []MatchRun
	err  error
}

func (f *fakeAuditor) RecordRun(_ context.Context, run MatchRun) error {
	f.runs = append(f.runs, run)
	return f.err
}

// ==========================
// Test Helper Functions
// ==========================

var (
	clientHome = matching.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	visitStart = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC) // Monday
	fixedNow   = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
)

func milesNorth(miles float64) *matching.Coordinate {
	return &matching.Coordinate{
		Latitude:  clientHome.Latitude + miles/(matching.EarthRadiusMiles*math.Pi/180),
		Longitude: clientHome.Longitude,
	}
}

func mondayWindow(start, end int) []matching.AvailabilityWindow {
	return []matching.AvailabilityWindow{{
		DayOfWeek:     time.Monday,
		StartHour:     start,
		EndHour:       end,
		EffectiveDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}}
}

// createTestStore scores cg-a at 90, cg-b at 47 and puts cg-far outside the radius.
func createTestStore() *matching.MemoryStore {
	return matching.NewMemoryStore(
		matching.Candidate{
			ID: "cg-a", Location: milesNorth(3), Gender: "FEMALE", PrimaryLanguage: "English",
			Skills: []string{"dementia", "mobility"}, Availability: mondayWindow(8, 16),
		},
		matching.Candidate{
			ID: "cg-b", Location: milesNorth(8), Gender: "MALE", PrimaryLanguage: "Spanish",
			Skills: []string{"dementia"}, Availability: mondayWindow(8, 16),
		},
		matching.Candidate{
			ID: "cg-far", Location: milesNorth(30), Gender: "FEMALE", PrimaryLanguage: "English",
			Skills: []string{"dementia", "mobility"}, Availability: mondayWindow(8, 16),
		},
	)
}

func createTestConfig() *Config {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

func createTestInput() *Input {
	return &Input{
		VisitID:           "v-1",
		ClientID:          "c-1",
		NotifyCoordinator: true,
		MatchingCriteria: MatchingCriteria{
			RequiredSkills:     []string{"dementia", "mobility"},
			PreferredLanguages: []string{"English"},
			GenderPreference:   "FEMALE",
			MaxDistance:        15,
			VisitDate:          visitStart,
			VisitDuration:      2,
		},
	}
}

func setupHandler(t *testing.T, cfg *Config, deps Dependencies) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	deps.DB = db
	if deps.Store == nil {
		deps.Store = createTestStore()
	}
	deps.Logger = logger.NewTestLogger(t)

	h := NewHandler(cfg, deps)
	h.now = func() time.Time { return fixedNow }
	return h, mock
}

func expectVisit(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM visits v")).
		WithArgs("v-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "client_id", "service_type", "scheduled_start", "first_name", "last_name", "latitude", "longitude",
		}).AddRow("v-1", "c-1", "Personal Care", visitStart, "Jane", "Doe", clientHome.Latitude, clientHome.Longitude))
}

func expectCoordinators(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow("u-1", "ana@caringcompass.example").
			AddRow("u-2", "").
			AddRow("u-3", "ben@caringcompass.example"))
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) *errors.StandardError {
	t.Helper()
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %T", err)
	assert.Equal(t, code, stdErr.Code)
	return stdErr
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_RanksMatches(t *testing.T) {
	h, mock := setupHandler(t, createTestConfig(), Dependencies{})
	expectVisit(mock)

	input := createTestInput()
	input.NotifyCoordinator = false
	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 2, out.MatchCount)
	require.Len(t, out.Matches, 2)
	assert.Equal(t, "cg-a", out.Matches[0].CaregiverID)
	assert.Equal(t, 90, out.Matches[0].Score)
	assert.True(t, out.Matches[0].IsAvailable)
	assert.Equal(t, "cg-b", out.Matches[1].CaregiverID)
	assert.Equal(t, 47, out.Matches[1].Score)
	assert.Contains(t, out.Matches[1].Reasons, "1/2 skills matched")
	assert.False(t, out.AutoAssigned)
	assert.Empty(t, out.SelectedCaregiverID)

	_, err = uuid.Parse(out.MatchRunID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AutoAssignNotifiesEveryone(t *testing.T) {
	sesAPI := &MockSESService{}
	snsAPI := &MockSNSService{}
	cache := &fakeCache{}
	auditor := &fakeAuditor{}

	cfg := createTestConfig()
	cfg.AuditEnabled = true
	h, mock := setupHandler(t, cfg, Dependencies{
		Cache:   cache,
		Email:   aws.NewSESClientWithAPI(sesAPI, "noreply@caringcompass.example"),
		SMS:     aws.NewSNSClientWithAPI(snsAPI, ""),
		Auditor: auditor,
	})

	expectVisit(mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visits")).
		WithArgs("v-1", "cg-a", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM caregiver_profiles")).
		WithArgs("cg-a").
		WillReturnRows(sqlmock.NewRows([]string{"phone"}).AddRow("+15555550100"))
	expectCoordinators(mock)

	input := createTestInput()
	input.AutoAssign = true
	input.Metadata = map[string]interface{}{"source": "scheduler"}
	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, out.AutoAssigned)
	assert.Equal(t, "cg-a", out.SelectedCaregiverID)
	assert.Equal(t, 2, out.CoordinatorsNotified)

	require.Len(t, cache.days, 1)
	assert.Equal(t, "2024-06-03", cache.days[0].Format("2006-01-02"))

	require.Len(t, snsAPI.published, 1)
	assert.Equal(t, "+15555550100", awssdk.ToString(snsAPI.published[0].PhoneNumber))

	sent := sesAPI.Sent()
	require.Len(t, sent, 2)
	var recipients []string
	for _, in := range sent {
		recipients = append(recipients, in.Destination.ToAddresses...)
		assert.Equal(t, "Caregiver matching completed for Visit v-1", awssdk.ToString(in.Message.Subject.Data))
		html := awssdk.ToString(in.Message.Body.Html.Data)
		assert.Contains(t, html, "Caregiver Matching Results")
		assert.Contains(t, html, "Personal Care on Jun 3, 2024")
		assert.Contains(t, html, "Jane Doe")
		assert.Contains(t, html, "cg-a")
	}
	assert.ElementsMatch(t, []string{"ana@caringcompass.example", "ben@caringcompass.example"}, recipients)

	require.Len(t, auditor.runs, 1)
	run := auditor.runs[0]
	assert.Equal(t, out.MatchRunID, run.RunID)
	assert.Equal(t, 2, run.MatchCount)
	assert.True(t, run.AutoAssigned)
	assert.Equal(t, 2, run.CoordinatorsNotified)
	assert.Equal(t, "scheduler", run.Metadata["source"])
	assert.Equal(t, fixedNow, run.Timestamp)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_RedeliveryKeepsExistingAssignee(t *testing.T) {
	// cg-a already holds v-1 from the earlier delivery.
	visitEnd := visitStart.Add(2 * time.Hour)
	store := createTestStore()
	store.Put(matching.Candidate{
		ID: "cg-a", Location: milesNorth(3), Gender: "FEMALE", PrimaryLanguage: "English",
		Skills: []string{"dementia", "mobility"}, Availability: mondayWindow(8, 16),
		Bookings: []matching.Booking{{VisitID: "v-1", Start: visitStart, End: &visitEnd}},
	})

	h, mock := setupHandler(t, createTestConfig(), Dependencies{Store: store})
	expectVisit(mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visits")).
		WithArgs("v-1", "cg-a", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	input := createTestInput()
	input.AutoAssign = true
	input.NotifyCoordinator = false
	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "cg-a", out.SelectedCaregiverID)
	assert.Equal(t, 90, out.Matches[0].Score)
	assert.NotContains(t, out.Matches[0].Reasons, matching.ReasonConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AutoAssignWithoutMatchesLeavesVisitAlone(t *testing.T) {
	h, mock := setupHandler(t, createTestConfig(), Dependencies{Store: matching.NewMemoryStore()})
	expectVisit(mock)

	input := createTestInput()
	input.AutoAssign = true
	input.NotifyCoordinator = false
	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.False(t, out.AutoAssigned)
	assert.Equal(t, 0, out.MatchCount)
	assert.NotNil(t, out.Matches)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_TruncatesToMaxResults(t *testing.T) {
	cfg := createTestConfig()
	cfg.MaxResults = 1
	h, mock := setupHandler(t, cfg, Dependencies{})
	expectVisit(mock)

	input := createTestInput()
	input.NotifyCoordinator = false
	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Len(t, out.Matches, 1)
	assert.Equal(t, 2, out.MatchCount)
}

func TestHandler_Execute_CoordinatorEmailFailureIsNotFatal(t *testing.T) {
	sesAPI := &MockSESService{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			if params.Destination.ToAddresses[0] == "ben@caringcompass.example" {
				return nil, stderrors.New("MessageRejected: Email address is not verified")
			}
			return &ses.SendEmailOutput{MessageId: awssdk.String("m-1")}, nil
		},
	}
	h, mock := setupHandler(t, createTestConfig(), Dependencies{
		Email: aws.NewSESClientWithAPI(sesAPI, "noreply@caringcompass.example"),
	})
	expectVisit(mock)
	expectCoordinators(mock)

	out, err := h.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, 1, out.CoordinatorsNotified)

	for _, in := range sesAPI.Sent() {
		assert.Equal(t, "Caregiver matching results for Visit v-1", awssdk.ToString(in.Message.Subject.Data))
	}
}

func TestHandler_Execute_CoordinatorQueryFailureIsNotFatal(t *testing.T) {
	sesAPI := &MockSESService{}
	h, mock := setupHandler(t, createTestConfig(), Dependencies{
		Email: aws.NewSESClientWithAPI(sesAPI, "noreply@caringcompass.example"),
	})
	expectVisit(mock)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).WillReturnError(stderrors.New("relation users does not exist"))

	out, err := h.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.Equal(t, 0, out.CoordinatorsNotified)
	assert.Empty(t, sesAPI.Sent())
}

func TestHandler_Execute_AuditFailureIsNotFatal(t *testing.T) {
	cfg := createTestConfig()
	cfg.AuditEnabled = true
	auditor := &fakeAuditor{err: stderrors.New("index_closed_exception")}
	h, mock := setupHandler(t, cfg, Dependencies{Auditor: auditor})
	expectVisit(mock)

	input := createTestInput()
	input.NotifyCoordinator = false
	_, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Len(t, auditor.runs, 1)
}

func TestHandler_Execute_AuditDisabledSkipsAuditor(t *testing.T) {
	auditor := &fakeAuditor{}
	h, mock := setupHandler(t, createTestConfig(), Dependencies{Auditor: auditor})
	expectVisit(mock)

	input := createTestInput()
	input.NotifyCoordinator = false
	_, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Empty(t, auditor.runs)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_VisitNotFound(t *testing.T) {
	h, mock := setupHandler(t, createTestConfig(), Dependencies{})
	mock.ExpectQuery(regexp.QuoteMeta("FROM visits v")).
		WithArgs("v-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := h.Execute(context.Background(), createTestInput())
	stdErr := requireCode(t, err, errors.ErrCodeVisitNotFound)
	assert.False(t, stdErr.Retryable)
}

func TestHandler_Execute_VisitQueryFails(t *testing.T) {
	h, mock := setupHandler(t, createTestConfig(), Dependencies{})
	mock.ExpectQuery(regexp.QuoteMeta("FROM visits v")).WillReturnError(stderrors.New("connection reset"))

	_, err := h.Execute(context.Background(), createTestInput())
	requireCode(t, err, errors.ErrCodeDatabaseQueryFailed)
}

func TestHandler_Execute_StoreUnavailable(t *testing.T) {
	store := createTestStore()
	store.FailWith(stderrors.New("too many connections"))
	h, mock := setupHandler(t, createTestConfig(), Dependencies{Store: store})
	expectVisit(mock)

	_, err := h.Execute(context.Background(), createTestInput())
	stdErr := requireCode(t, err, errors.ErrCodeDataUnavailable)
	assert.True(t, stdErr.Retryable)
	assert.ErrorIs(t, err, matching.ErrDataUnavailable)
}

func TestHandler_Execute_AssignmentFails(t *testing.T) {
	cache := &fakeCache{}
	h, mock := setupHandler(t, createTestConfig(), Dependencies{Cache: cache})
	expectVisit(mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visits")).WillReturnError(stderrors.New("deadlock detected"))

	input := createTestInput()
	input.AutoAssign = true
	_, err := h.Execute(context.Background(), input)
	requireCode(t, err, errors.ErrCodeAssignmentFailed)
	assert.Empty(t, cache.days)
}

func TestHandler_Execute_AssignmentFindsNoRow(t *testing.T) {
	h, mock := setupHandler(t, createTestConfig(), Dependencies{})
	expectVisit(mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE visits")).WillReturnResult(sqlmock.NewResult(0, 0))

	input := createTestInput()
	input.AutoAssign = true
	_, err := h.Execute(context.Background(), input)
	requireCode(t, err, errors.ErrCodeAssignmentFailed)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	const valid = `{
		"visitId": "v-1",
		"clientId": "c-1",
		"matchingCriteria": {
			"requiredSkills": ["dementia"],
			"maxDistance": 10,
			"visitDate": "2024-06-03T10:00:00Z",
			"visitDuration": 2
		}
	}`

	t.Run("defaults applied", func(t *testing.T) {
		job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Variables: valid}}
		input, err := parseInput(job.Variables)
		require.NoError(t, err)
		assert.Equal(t, "v-1", input.VisitID)
		assert.False(t, input.AutoAssign)
		assert.True(t, input.NotifyCoordinator)
		assert.Equal(t, []string{}, input.MatchingCriteria.PreferredLanguages)
		assert.True(t, input.MatchingCriteria.VisitDate.Equal(visitStart))
	})

	t.Run("explicit flags kept", func(t *testing.T) {
		input, err := parseInput(`{"visitId":"v-1","clientId":"c-1","autoAssign":true,"notifyCoordinator":false,
			"processVariable":"ignored",
			"matchingCriteria":{"requiredSkills":[],"preferredLanguages":["Spanish"],"genderPreference":"MALE",
			"maxDistance":5.5,"visitDate":"2024-06-03T10:00:00-04:00","visitDuration":1.5,"hourlyRateMax":30}}`)
		require.NoError(t, err)
		assert.True(t, input.AutoAssign)
		assert.False(t, input.NotifyCoordinator)
		assert.Equal(t, "MALE", input.MatchingCriteria.GenderPreference)
		assert.Equal(t, 1.5, input.MatchingCriteria.VisitDuration)
	})

	invalid := []struct {
		name      string
		variables string
	}{
		{"missing visitId", `{"clientId":"c-1","matchingCriteria":{"requiredSkills":[],"maxDistance":1,"visitDate":"2024-06-03T10:00:00Z","visitDuration":1}}`},
		{"empty clientId", `{"visitId":"v-1","clientId":"","matchingCriteria":{"requiredSkills":[],"maxDistance":1,"visitDate":"2024-06-03T10:00:00Z","visitDuration":1}}`},
		{"missing criteria", `{"visitId":"v-1","clientId":"c-1"}`},
		{"zero distance", `{"visitId":"v-1","clientId":"c-1","matchingCriteria":{"requiredSkills":[],"maxDistance":0,"visitDate":"2024-06-03T10:00:00Z","visitDuration":1}}`},
		{"negative duration", `{"visitId":"v-1","clientId":"c-1","matchingCriteria":{"requiredSkills":[],"maxDistance":1,"visitDate":"2024-06-03T10:00:00Z","visitDuration":-2}}`},
		{"unknown gender", `{"visitId":"v-1","clientId":"c-1","matchingCriteria":{"requiredSkills":[],"genderPreference":"OTHER","maxDistance":1,"visitDate":"2024-06-03T10:00:00Z","visitDuration":1}}`},
		{"bad date", `{"visitId":"v-1","clientId":"c-1","matchingCriteria":{"requiredSkills":[],"maxDistance":1,"visitDate":"tomorrow","visitDuration":1}}`},
		{"skills not a list", `{"visitId":"v-1","clientId":"c-1","matchingCriteria":{"requiredSkills":"dementia","maxDistance":1,"visitDate":"2024-06-03T10:00:00Z","visitDuration":1}}`},
		{"not json", `not json`},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInput(tt.variables)
			requireCode(t, err, errors.ErrCodeInvalidMatchingInput)
		})
	}
}

// ==========================
// Helper Tests
// ==========================

func TestBuildCriteria_UsesAgencyTimeZone(t *testing.T) {
	eastern := time.FixedZone("EDT", -4*3600)
	input := createTestInput()
	input.MatchingCriteria.VisitDate = time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	visit := &Visit{ID: "v-1", ClientLocation: clientHome}

	criteria := buildCriteria(input, visit, eastern)

	assert.Equal(t, 10, criteria.RequestedStart.Hour())
	assert.Equal(t, time.Monday, criteria.RequestedStart.Weekday())
	assert.Equal(t, "v-1", criteria.VisitID)
	assert.Equal(t, clientHome, criteria.ClientLocation)
	assert.Equal(t, 15.0, criteria.MaxDistanceMiles)
}

func TestTopMatches(t *testing.T) {
	results := []matching.Result{{CaregiverID: "a"}, {CaregiverID: "b"}, {CaregiverID: "c"}}
	tests := []struct {
		limit int
		want  int
	}{
		{0, 3},
		{-1, 3},
		{2, 2},
		{10, 3},
	}
	for _, tt := range tests {
		assert.Len(t, topMatches(results, tt.limit), tt.want)
	}
}

func TestBuildCoordinatorEmail_EscapesClientName(t *testing.T) {
	h := NewHandler(createTestConfig(), Dependencies{Store: matching.NewMemoryStore(), Logger: logger.NewNoOpLogger()})
	visit := &Visit{
		ID: "v-9", ServiceType: "Companionship", ScheduledStart: visitStart,
		ClientFirstName: "<b>Al</b>", ClientLastName: "Smith",
	}

	email, err := h.buildCoordinatorEmail(visit, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "Caregiver matching results for Visit v-9", email.Subject)
	assert.NotContains(t, email.HTML, "<b>Al</b>")
	assert.NotContains(t, email.HTML, "Auto-assigned")
	assert.Contains(t, email.HTML, "Matches found:</strong> 0")
	assert.Contains(t, email.HTML, "View details in the admin portal.")
}

// ==========================
// Audit Indexing Tests
// ==========================

func newTestElasticsearch(t *testing.T, handler http.HandlerFunc) *database.ElasticsearchClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return es
}

func TestESAuditor_RecordRun(t *testing.T) {
	var (
		method, path string
		indexed      MatchRun
	)
	es := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &indexed)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"run-1","result":"created"}`))
	})

	auditor := NewESAuditor(es, "caregiver-match-runs")
	err := auditor.RecordRun(context.Background(), MatchRun{
		RunID:      "run-1",
		VisitID:    "v-1",
		MatchCount: 2,
		TopMatches: []matching.Result{{CaregiverID: "cg-a", Score: 90}},
		Timestamp:  fixedNow,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/caregiver-match-runs/_doc/run-1", path)
	assert.Equal(t, "v-1", indexed.VisitID)
	require.Len(t, indexed.TopMatches, 1)
	assert.Equal(t, 90, indexed.TopMatches[0].Score)
}

func TestESAuditor_RecordRunError(t *testing.T) {
	es := newTestElasticsearch(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"cluster_block_exception"}`))
	})

	err := NewESAuditor(es, "caregiver-match-runs").RecordRun(context.Background(), MatchRun{RunID: "run-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
