package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/antonio-prism/prism-brain/internal/exposure"
	"github.com/antonio-prism/prism-brain/internal/model"
	"github.com/antonio-prism/prism-brain/internal/pareto"
	"github.com/antonio-prism/prism-brain/internal/probability"
	"github.com/antonio-prism/prism-brain/internal/relevance"
	"github.com/antonio-prism/prism-brain/internal/signals"
)

// getProbabilities serves the remote probability contract: a map from risk ID
// to result. Unknown IDs are skipped, so an empty object means no data.
func (s *Server) getProbabilities(w http.ResponseWriter, r *http.Request) {
	if s.deps.Calculator == nil {
		writeError(w, http.StatusServiceUnavailable, "probability engine not configured")
		return
	}
	q := r.URL.Query()
	client := model.ClientProfile{
		Industry: q.Get("industry"),
		Region:   q.Get("region"),
		Location: q.Get("location"),
	}

	var risks []model.RiskEvent
	if ids := q.Get("risks"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if risk, ok := s.byID[strings.TrimSpace(id)]; ok {
				risks = append(risks, risk)
			}
		}
	} else {
		risks = s.deps.Catalog
	}

	results := map[string]model.ProbabilityResult{}
	if len(risks) > 0 {
		results = s.deps.Calculator.CalculateAll(r.Context(), risks, client)
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) getSignals(w http.ResponseWriter, r *http.Request) {
	if s.deps.Signals == nil {
		writeError(w, http.StatusServiceUnavailable, "signals not configured")
		return
	}
	q := r.URL.Query()
	force, _ := strconv.ParseBool(q.Get("force"))
	sc := signals.Context{Industry: q.Get("industry"), Region: q.Get("region"), Location: q.Get("location")}
	if sc.Region == "" {
		sc.Region = sc.Location
	}
	writeJSON(w, http.StatusOK, signals.Summarize(s.deps.Signals.FetchAll(r.Context(), sc, force)))
}

func (s *Server) getCache(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	fr, err := s.deps.Cache.CacheFreshness(r.Context())
	if err != nil {
		zap.L().Error("api: cache freshness", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache unavailable")
		return
	}
	writeJSON(w, http.StatusOK, fr)
}

type relevanceRequest struct {
	Client    model.ClientProfile    `json:"client"`
	Selection model.SelectionContext `json:"selection"`
	Capped    bool                   `json:"capped"`
}

type relevanceResponse struct {
	Scores   []model.RelevanceScore `json:"scores"`
	Selected []model.RelevanceScore `json:"selected"`
	MinScore float64                `json:"min_score"`
}

func (s *Server) postRelevance(w http.ResponseWriter, r *http.Request) {
	var req relevanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sel := s.withDefaults(req.Selection)

	var scores []model.RelevanceScore
	if req.Capped {
		scores = s.scorer.Capped(req.Client, sel)
	} else {
		scores = s.scorer.Score(req.Client, sel)
	}
	writeJSON(w, http.StatusOK, relevanceResponse{
		Scores:   scores,
		Selected: relevance.Select(scores, sel),
		MinScore: sel.MinRiskScore,
	})
}

type prioritizeRequest struct {
	Client    model.ClientProfile    `json:"client"`
	Processes []model.ProcessRecord  `json:"processes"`
	Selection model.SelectionContext `json:"selection"`
	// ApplyDefaultCriticality fills zero criticalities from client revenue
	// before selection. Off by default so an all-zero set stays undefined.
	ApplyDefaultCriticality bool `json:"apply_default_criticality"`
}

type prioritizedRisk struct {
	model.RelevanceScore
	Probability   float64          `json:"probability"`
	Level         string           `json:"level"`
	PriorityScore float64          `json:"priority_score"`
	Provenance    model.Provenance `json:"provenance,omitempty"`
}

type prioritizeResponse struct {
	Processes    pareto.ProcessSelection `json:"processes"`
	Risks        []prioritizedRisk       `json:"risks"`
	Combinations int                     `json:"combinations"`
}

func (s *Server) postPrioritize(w http.ResponseWriter, r *http.Request) {
	var req prioritizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sel := s.withDefaults(req.Selection)

	if req.ApplyDefaultCriticality {
		if n := fillCriticality(req.Processes, req.Client.Revenue, s.deps.WorkingDays); n > 0 {
			zap.L().Debug("api: filled default criticality", zap.Int("processes", n))
		}
	}
	procs, err := pareto.SelectProcesses(req.Processes, sel)
	if errors.Is(err, pareto.ErrUndefinedSelection) {
		writeError(w, http.StatusUnprocessableEntity, "total process criticality is zero; selection is undefined")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	selected := relevance.Select(s.scorer.Capped(req.Client, sel), sel)
	risks := make([]model.RiskEvent, 0, len(selected))
	for _, sc := range selected {
		risks = append(risks, s.byID[sc.RiskID])
	}

	var probs map[string]model.ProbabilityResult
	if s.deps.Calculator != nil && len(risks) > 0 {
		probs = s.deps.Calculator.CalculateAll(r.Context(), risks, req.Client)
	}

	out := prioritizeResponse{
		Processes:    procs,
		Risks:        make([]prioritizedRisk, 0, len(selected)),
		Combinations: pareto.Combinations(len(procs.Selected), len(selected)),
	}
	for i, sc := range selected {
		p := risks[i].BaseProbability
		pr, ok := probs[sc.RiskID]
		if ok {
			p = pr.Probability
		}
		out.Risks = append(out.Risks, prioritizedRisk{
			RelevanceScore: sc,
			Probability:    p,
			Level:          string(probability.LevelOf(p)),
			PriorityScore:  relevance.PriorityScore(risks[i], req.Client, p),
			Provenance:     pr.Provenance,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) putAssessment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assessments == nil {
		writeError(w, http.StatusServiceUnavailable, "assessment store not configured")
		return
	}
	var rec model.ExposureRecord
	if !decodeBody(w, r, &rec) {
		return
	}
	if rec.ClientID == "" || rec.ProcessID == "" || rec.RiskID == "" {
		writeError(w, http.StatusBadRequest, "client_id, process_id and risk_id are required")
		return
	}
	if risk, ok := s.byID[rec.RiskID]; ok {
		if rec.RiskName == "" {
			rec.RiskName = risk.Name
		}
		if rec.Domain == "" {
			rec.Domain = risk.Domain
		}
	}

	rec = exposure.Assess(rec)
	if err := s.deps.Assessments.SaveAssessment(r.Context(), rec); err != nil {
		zap.L().Error("api: save assessment", zap.String("client_id", rec.ClientID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save assessment")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) getExposure(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assessments == nil {
		writeError(w, http.StatusServiceUnavailable, "assessment store not configured")
		return
	}
	clientID := chi.URLParam(r, "clientID")
	recs, err := s.deps.Assessments.ListAssessments(r.Context(), clientID)
	if err != nil {
		zap.L().Error("api: list assessments", zap.String("client_id", clientID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load assessments")
		return
	}
	writeJSON(w, http.StatusOK, exposure.Aggregate(recs))
}

func (s *Server) withDefaults(sel model.SelectionContext) model.SelectionContext {
	if sel.ProcessThresholdPct == 0 {
		sel.ProcessThresholdPct = s.deps.ThresholdPct
	}
	if sel.MinRiskScore == 0 {
		sel.MinRiskScore = s.deps.MinScore
	}
	return sel
}

// fillCriticality sets zero criticalities to the revenue-based default.
func fillCriticality(processes []model.ProcessRecord, revenue float64, workingDays int) int {
	def := pareto.DefaultCriticality(revenue, workingDays, len(processes))
	if def == 0 {
		return 0
	}
	n := 0
	for i := range processes {
		if processes[i].CriticalityPerDay <= 0 {
			processes[i].CriticalityPerDay = def
			n++
		}
	}
	return n
}
