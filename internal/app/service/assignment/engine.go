package assignment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/coachpay/pkg/config"
	"github.com/fatflowers/coachpay/pkg/logctx"
	"github.com/fatflowers/coachpay/pkg/metrics"
	"github.com/fatflowers/coachpay/pkg/types"
)

type Path string

const (
	PathTeam      Path = "team"
	PathPreferred Path = "preferred"
	PathScored    Path = "scored"
	PathManual    Path = "manual"
)

type Request struct {
	ServiceID        string
	FocusAreas       []string
	PreferredCoachID string
}

// Decision is the outcome of one assignment. CoachID is empty exactly when
// NeedsManualAssignment is set.
type Decision struct {
	CoachID               string           `json:"coach_id,omitempty"`
	NeedsManualAssignment bool             `json:"needs_manual_assignment"`
	Path                  Path             `json:"path"`
	Candidates            []CoachCandidate `json:"candidates,omitempty"`
}

type Engine struct {
	repo        Repository
	teamAdminID string
	log         *zap.SugaredLogger
	metrics     *metrics.Business
	now         func() time.Time
}

func NewEngine(cfg *config.Config, repo Repository, log *zap.SugaredLogger, m *metrics.Business) *Engine {
	return &Engine{
		repo:        repo,
		teamAdminID: cfg.Assignment.TeamAdminID,
		log:         log,
		metrics:     m,
		now:         time.Now,
	}
}

// Assign selects a coach for a new subscription. Running out of capacity is
// not an error: the decision is flagged for manual assignment instead.
func (e *Engine) Assign(ctx context.Context, req Request) (*Decision, error) {
	log := logctx.FromCtx(ctx, e.log).With("service_id", req.ServiceID)

	serviceType, err := e.repo.ServiceType(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("resolve service type: %w", err)
	}
	if serviceType == types.ServiceTypeTeam {
		if e.teamAdminID == "" {
			log.Warnw("team plan without configured team admin, needs manual assignment")
			return e.decide(&Decision{NeedsManualAssignment: true, Path: PathManual}), nil
		}
		return e.decide(&Decision{CoachID: e.teamAdminID, Path: PathTeam}), nil
	}

	if req.PreferredCoachID != "" {
		ok, err := e.hasCapacity(ctx, req.PreferredCoachID, req.ServiceID)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := e.repo.TouchLastAssigned(ctx, req.PreferredCoachID, e.now()); err != nil {
				return nil, fmt.Errorf("update last assigned: %w", err)
			}
			log.Infow("assigned preferred coach", "coach_id", req.PreferredCoachID)
			return e.decide(&Decision{CoachID: req.PreferredCoachID, Path: PathPreferred}), nil
		}
		log.Infow("preferred coach unavailable, falling back to scoring", "coach_id", req.PreferredCoachID)
	}

	coaches, err := e.repo.ListCoachesWithLimit(ctx, req.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("list coaches: %w", err)
	}

	candidates := make([]CoachCandidate, 0, len(coaches))
	for _, c := range coaches {
		if !c.Eligible() {
			continue
		}
		serviceLoad, err := e.repo.CountClients(ctx, c.CoachID, req.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("count clients of %s: %w", c.CoachID, err)
		}
		if serviceLoad >= *c.MaxClients {
			continue
		}
		load, err := e.repo.CountClients(ctx, c.CoachID, "")
		if err != nil {
			return nil, fmt.Errorf("count clients of %s: %w", c.CoachID, err)
		}
		matches := MatchCount(req.FocusAreas, c.Specializations)
		candidates = append(candidates, CoachCandidate{
			CoachID:                  c.CoachID,
			SpecializationMatchCount: matches,
			ActiveClientCount:        load,
			LastAssignedAt:           c.LastAssignedAt,
			Score:                    Score(matches, load),
		})
	}

	if len(candidates) == 0 {
		log.Warnw("no coach with capacity, needs manual assignment", "coaches_considered", len(coaches))
		return e.decide(&Decision{NeedsManualAssignment: true, Path: PathManual}), nil
	}

	ranked := Rank(candidates)
	winner := ranked[0]
	if err := e.repo.TouchLastAssigned(ctx, winner.CoachID, e.now()); err != nil {
		return nil, fmt.Errorf("update last assigned: %w", err)
	}
	log.Infow("assigned coach by score", "coach_id", winner.CoachID, "score", winner.Score, "candidates", len(ranked))
	return e.decide(&Decision{CoachID: winner.CoachID, Path: PathScored, Candidates: ranked}), nil
}

func (e *Engine) hasCapacity(ctx context.Context, coachID, serviceID string) (bool, error) {
	coach, err := e.repo.GetCoach(ctx, coachID, serviceID)
	if err != nil {
		return false, fmt.Errorf("load coach %s: %w", coachID, err)
	}
	if !coach.Eligible() {
		return false, nil
	}
	n, err := e.repo.CountClients(ctx, coachID, serviceID)
	if err != nil {
		return false, fmt.Errorf("count clients of %s: %w", coachID, err)
	}
	return n < *coach.MaxClients, nil
}

func (e *Engine) decide(d *Decision) *Decision {
	e.metrics.AssignmentDecisions.WithLabelValues(string(d.Path)).Inc()
	return d
}
