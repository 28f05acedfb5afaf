package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/services"
	"github.com/buildlens/buildlens/internal/logger"
)

// prActions are the pull_request actions that trigger a summary. Everything
// else (labeled, closed, comment edits) is acknowledged and dropped.
var prActions = map[string]bool{
	"opened":           true,
	"reopened":         true,
	"synchronize":      true,
	"ready_for_review": true,
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// buildFailureRequest is the payload CI posts on a failed build.
type buildFailureRequest struct {
	Log      string `json:"log"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch"`
	Commit   string `json:"commit"`
	BuildURL string `json:"build_url"`
	BuildID  string `json:"build_id"`
	EventID  string `json:"event_id"`
}

func (s *Server) handleBuildFailure(w http.ResponseWriter, r *http.Request) {
	settings := s.snapshot()

	body, ok := s.readSignedBody(w, r, settings.Webhook.Secret)
	if !ok {
		return
	}

	var req buildFailureRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Log == "" {
		writeError(w, http.StatusBadRequest, "log is required")
		return
	}

	artifactID := req.BuildID
	if artifactID == "" {
		artifactID = "build-failure"
	}
	artifact := domain.NewArtifact(artifactID, req.Log)
	info := domain.BuildInfo{
		Repo:     req.Repo,
		Branch:   req.Branch,
		Commit:   req.Commit,
		BuildURL: req.BuildURL,
		BuildID:  req.BuildID,
	}

	report, err := s.analysis.AnalyzeBuildLog(r.Context(), artifact, info)
	if err != nil {
		logger.Warn("build log analysis failed: %v", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	s.deliver(r, req.EventID, services.RenderChatMessage(report))
	writeJSON(w, http.StatusOK, report)
}

// gitHubEvent is the subset of the pull_request payload the server reads.
// The PR body is never decoded.
type gitHubEvent struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Title string `json:"title"`
		User  struct {
			Login string `json:"login"`
		} `json:"user"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
		Additions    int `json:"additions"`
		Deletions    int `json:"deletions"`
		ChangedFiles int `json:"changed_files"`
	} `json:"pull_request"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

func (s *Server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	settings := s.snapshot()

	body, ok := s.readSignedBody(w, r, settings.Webhook.Secret)
	if !ok {
		return
	}

	switch event := r.Header.Get("X-GitHub-Event"); event {
	case "ping":
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	case "pull_request":
		// Handled below.
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "event": event})
		return
	}

	var event gitHubEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if !prActions[event.Action] {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored", "action": event.Action})
		return
	}

	pr := domain.PullRequest{
		Owner:        event.Repository.Owner.Login,
		Repo:         event.Repository.Name,
		Number:       event.Number,
		Title:        event.PullRequest.Title,
		Author:       event.PullRequest.User.Login,
		BaseBranch:   event.PullRequest.Base.Ref,
		Additions:    event.PullRequest.Additions,
		Deletions:    event.PullRequest.Deletions,
		ChangedFiles: event.PullRequest.ChangedFiles,
		TicketIDs:    domain.ExtractTicketIDs(event.PullRequest.Title),
		EventID:      r.Header.Get("X-GitHub-Delivery"),
	}

	summary, err := s.prs.SummarizePR(r.Context(), pr)
	if err != nil {
		logger.Warn("PR summary failed: %v", err)
		writeError(w, http.StatusInternalServerError, "summary failed")
		return
	}

	s.deliver(r, pr.EventID, summary)
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// readSignedBody reads and signature-checks the request body. On a bad
// signature it answers 401 and the caller must return without running any
// pipeline stage.
func (s *Server) readSignedBody(w http.ResponseWriter, r *http.Request, secret string) ([]byte, bool) {
	if secret == "" {
		writeError(w, http.StatusServiceUnavailable, "webhook secret not configured")
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}

	if err := verifySignature(secret, body, r.Header.Get(signatureHeader)); err != nil {
		logger.Warn("rejected webhook from %s: %v", r.RemoteAddr, err)
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return nil, false
	}
	return body, true
}

// deliver posts text to the configured chat channel, once per event id.
// Retried deliveries of the same event id are suppressed. The id is claimed
// before posting; a failed post releases the claim so the event can still be
// delivered when the sender retries.
func (s *Server) deliver(r *http.Request, eventID, text string) {
	settings := s.snapshot()
	if s.notifier == nil || settings.Slack.Channel == "" {
		return
	}

	claimed := false
	if eventID != "" && s.delivery != nil {
		first, err := s.delivery.MarkDelivered(r.Context(), eventID)
		if err != nil {
			logger.Warn("delivery idempotency check failed: %v", err)
		} else if !first {
			logger.Debug("suppressing duplicate delivery for event %s", eventID)
			return
		} else {
			claimed = true
		}
	}

	if _, err := s.notifier.Post(r.Context(), settings.Slack.Channel, text); err != nil {
		logger.Warn("chat delivery failed: %v", err)
		if claimed {
			if cerr := s.delivery.ClearDelivered(r.Context(), eventID); cerr != nil {
				logger.Warn("releasing delivery claim for event %s failed: %v", eventID, cerr)
			}
		}
	}
}
