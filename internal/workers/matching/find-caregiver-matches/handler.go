// internal/workers/matching/find-caregiver-matches/handler.go
package findcaregivermatches

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"caring-compass-workers/internal/common/camunda"
	"caring-compass-workers/internal/common/errors"
	"caring-compass-workers/internal/common/logger"
	"caring-compass-workers/internal/common/metrics"
	"caring-compass-workers/internal/common/observability"
	"caring-compass-workers/internal/matching"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "find-caregiver-matches"
)

// CacheInvalidator drops cached caregiver snapshots for a day.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, day time.Time) error
}

// Dependencies are the collaborators of a Handler. Cache, Email, SMS, Auditor
// and Observability are optional.
type Dependencies struct {
	DB            *sql.DB
	Store         matching.CaregiverStore
	Cache         CacheInvalidator
	Email         EmailSender
	SMS           SMSSender
	Auditor       Auditor
	Observability *observability.Observability
	Logger        logger.Logger
}

type Handler struct {
	config       *Config
	matcher      *matching.Matcher
	visits       *visitRepository
	cache        CacheInvalidator
	email        EmailSender
	sms          SMSSender
	auditor      Auditor
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

func NewHandler(config *Config, deps Dependencies) *Handler {
	log := deps.Logger.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		matcher:      matching.NewMatcher(deps.Store, log),
		visits:       &visitRepository{db: deps.DB},
		cache:        deps.Cache,
		email:        deps.Email,
		sms:          deps.SMS,
		auditor:      deps.Auditor,
		obs:          deps.Observability,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := parseInput(job.Variables)
	if err != nil {
		h.failJob(client, job, err, start)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err, start)
		return
	}

	h.completeJob(client, job, output, start)
}

// Execute runs one matching request end to end. Returned errors are always
// *errors.StandardError.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	visit, err := h.visits.loadVisit(ctx, input.VisitID)
	if err != nil {
		return nil, err
	}
	if visit.ClientID != input.ClientID {
		h.logger.Warn("clientId does not match the visit's client", map[string]interface{}{
			"visitId":     visit.ID,
			"inputClient": input.ClientID,
			"visitClient": visit.ClientID,
		})
	}

	criteria := buildCriteria(input, visit, h.config.location())
	matches, err := h.matcher.FindMatches(ctx, criteria)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewTimeoutError("caregiver store", err)
		}
		return nil, errors.NewDataUnavailableError(err)
	}
	metrics.CaregiverMatchResults.Observe(float64(len(matches)))

	output := &Output{
		Success:    true,
		MatchRunID: uuid.New().String(),
		Matches:    topMatches(matches, h.config.MaxResults),
		MatchCount: len(matches),
	}

	if input.AutoAssign && len(matches) > 0 {
		best := matches[0].CaregiverID
		if err := h.visits.assignVisit(ctx, visit.ID, best, h.now().UTC()); err != nil {
			return nil, err
		}
		output.AutoAssigned = true
		output.SelectedCaregiverID = best
		metrics.CaregiverAutoAssignments.Inc()

		h.logger.Info("visit auto-assigned", map[string]interface{}{
			"visitId":     visit.ID,
			"caregiverId": best,
			"score":       matches[0].Score,
		})

		h.invalidateCache(ctx, criteria.RequestedStart)
		h.notifyAssignee(ctx, visit, best)
	}

	if input.NotifyCoordinator {
		output.CoordinatorsNotified = h.notifyCoordinators(ctx, visit, len(matches), output.SelectedCaregiverID)
	}

	h.recordRun(ctx, input, criteria, output)

	h.logger.Info("matching completed", map[string]interface{}{
		"visitId":      visit.ID,
		"matchRunId":   output.MatchRunID,
		"matchCount":   output.MatchCount,
		"autoAssigned": output.AutoAssigned,
	})
	return output, nil
}

func buildCriteria(input *Input, visit *Visit, loc *time.Location) matching.Criteria {
	mc := input.MatchingCriteria
	return matching.Criteria{
		VisitID:            visit.ID,
		ClientLocation:     visit.ClientLocation,
		RequiredSkills:     mc.RequiredSkills,
		PreferredLanguages: mc.PreferredLanguages,
		GenderPreference:   mc.GenderPreference,
		RequestedStart:     mc.VisitDate.In(loc),
		VisitDurationHours: mc.VisitDuration,
		MaxDistanceMiles:   mc.MaxDistance,
	}
}

// topMatches returns at most limit results. limit <= 0 keeps all.
func topMatches(matches []matching.Result, limit int) []matching.Result {
	if limit <= 0 || len(matches) <= limit {
		return matches
	}
	return matches[:limit]
}

func (h *Handler) invalidateCache(ctx context.Context, day time.Time) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, day); err != nil {
		h.logger.Warn("caregiver cache invalidation failed", map[string]interface{}{
			"day":   day.Format("2006-01-02"),
			"error": err,
		})
	}
}

func (h *Handler) recordRun(ctx context.Context, input *Input, criteria matching.Criteria, output *Output) {
	if !h.config.AuditEnabled || h.auditor == nil {
		return
	}

	run := MatchRun{
		RunID:                output.MatchRunID,
		VisitID:              input.VisitID,
		ClientID:             input.ClientID,
		Criteria:             criteriaDocument(criteria),
		MatchCount:           output.MatchCount,
		TopMatches:           output.Matches,
		AutoAssignRequested:  input.AutoAssign,
		AutoAssigned:         output.AutoAssigned,
		SelectedCaregiverID:  output.SelectedCaregiverID,
		CoordinatorsNotified: output.CoordinatorsNotified,
		Metadata:             input.Metadata,
		Timestamp:            h.now().UTC(),
	}
	if err := h.auditor.RecordRun(ctx, run); err != nil {
		stdErr := errors.NewAuditIndexFailedError(h.config.AuditIndex, err)
		h.logger.Warn("match run not indexed", map[string]interface{}{
			"matchRunId": run.RunID,
			"errorCode":  string(stdErr.Code),
			"error":      err,
		})
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output, start time.Time) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		h.failJob(client, job, errors.NewInternalError(err), start)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = camunda.SendWithRetry(ctx, h.config.Retry, "complete job", func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		h.record(ctx, "complete_failed", start)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.record(ctx, "completed", start)
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":     job.Key,
		"matchCount": output.MatchCount,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error, start time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := h.errorHandler.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, res.BPMN.Code).Inc()
	h.record(ctx, "failed", start)
}

func (h *Handler) record(ctx context.Context, status string, start time.Time) {
	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, elapsed, status)
}
