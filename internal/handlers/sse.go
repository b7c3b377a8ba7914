package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-playground/validator/v10"
	"github.com/starfederation/datastar-go/datastar"

	"mall-dashboard/internal/dashboard"
	apperrors "mall-dashboard/internal/errors"
	"mall-dashboard/internal/observability"
	"mall-dashboard/internal/sorting"
	"mall-dashboard/internal/ui/templates"
)

// signals is what the page sends with every Datastar request.
type signals struct {
	SID    string `json:"sid" validate:"required"`
	Search string `json:"search" validate:"max=100"`
	From   string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

type SSEHandlers struct {
	sessions *dashboard.Sessions
	logger   *slog.Logger
	validate *validator.Validate
}

func NewSSEHandlers(sessions *dashboard.Sessions, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		sessions: sessions,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *SSEHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteError(w, observability.LoggerFrom(r.Context(), h.logger), err, observability.GetRequestID(r.Context()))
}

// HandleDashboard renders the page for the requested URL and opens a session
// for the tab.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Open(r.URL.Path, r.URL.RawQuery)
	ctx := observability.WithSessionID(r.Context(), sess.ID)

	ctx, span := observability.StartSpan(ctx, "dashboard.initial_load")
	if err := sess.Controller.Refresh(ctx); err != nil {
		span.SetError(err)
	}
	span.FinishAndLog(ctx, h.logger)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := templates.Dashboard(sess.ID, sess.Controller.View()).Render(ctx, w); err != nil {
		observability.LoggerFrom(ctx, h.logger).Error("render dashboard", "error", err)
	}
}

// HandleStream keeps the tab in sync: every controller change re-renders the
// three sections and replaces the browser URL.
func (h *SSEHandlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	var sig signals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		h.fail(w, r, apperrors.BadRequestWrap(err, "invalid signals"))
		return
	}

	sess, release, ok := h.sessions.Acquire(sig.SID)
	if !ok {
		// the session expired or the server restarted; start over
		sse := datastar.NewSSE(w, r)
		if err := sse.ExecuteScript("window.location.reload()"); err != nil {
			h.logger.Debug("reload script", "error", err)
		}
		return
	}
	defer release()

	ctx := observability.WithSessionID(r.Context(), sess.ID)
	logger := observability.LoggerFrom(ctx, h.logger)

	updates, unsubscribe := sess.Controller.Subscribe()
	defer unsubscribe()

	sse := datastar.NewSSE(w, r)
	st := &streamState{}
	for {
		if err := st.push(ctx, sse, sess.Controller); err != nil {
			logger.Debug("dashboard stream closed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-updates:
		}
	}
}

// streamState remembers what the browser already has.
type streamState struct {
	url        string
	navigation uint64
}

func (st *streamState) push(ctx context.Context, sse *datastar.ServerSentEventGenerator, c *dashboard.Controller) error {
	v := c.View()

	for _, part := range []templ.Component{
		templates.FrequencySection(v),
		templates.CustomerList(v),
		templates.DetailModal(v),
	} {
		html, err := templates.RenderString(ctx, part)
		if err != nil {
			return fmt.Errorf("render fragment: %w", err)
		}
		if err := sse.PatchElements(html); err != nil {
			return err
		}
	}

	if v.Navigation != st.navigation {
		st.navigation = v.Navigation
		if err := patchInputs(sse, v.SearchInput, v.Range.From, v.Range.To); err != nil {
			return err
		}
	}

	if url := c.URL(); url != st.url {
		st.url = url
		quoted, err := json.Marshal(url)
		if err != nil {
			return err
		}
		if err := sse.ExecuteScript(fmt.Sprintf("window.history.replaceState(null, '', %s)", quoted)); err != nil {
			return err
		}
	}
	return nil
}

func patchInputs(sse *datastar.ServerSentEventGenerator, search, from, to string) error {
	payload, err := json.Marshal(map[string]string{"search": search, "from": from, "to": to})
	if err != nil {
		return err
	}
	return sse.PatchSignals(payload)
}

// interact resolves the tab's session and applies one interaction to it. The
// open stream delivers the result; the returned generator, nil on failure,
// answers the request itself.
func (h *SSEHandlers) interact(w http.ResponseWriter, r *http.Request, apply func(*dashboard.Session, signals) error) *datastar.ServerSentEventGenerator {
	var sig signals
	if err := datastar.ReadSignals(r, &sig); err != nil {
		h.fail(w, r, apperrors.BadRequestWrap(err, "invalid signals"))
		return nil
	}
	if err := h.validate.Struct(sig); err != nil {
		h.fail(w, r, apperrors.ValidationWrap(err, "invalid signals").WithDetails(describe(err)))
		return nil
	}

	sess, ok := h.sessions.Get(sig.SID)
	if !ok {
		h.fail(w, r, apperrors.NotFound("session expired"))
		return nil
	}
	if err := apply(sess, sig); err != nil {
		h.fail(w, r, err)
		return nil
	}
	return datastar.NewSSE(w, r)
}

func (h *SSEHandlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	h.interact(w, r, func(s *dashboard.Session, sig signals) error {
		if r.URL.Query().Get("submit") != "" {
			s.Controller.SubmitSearch(sig.Search)
		} else {
			s.Controller.SetSearchInput(sig.Search)
		}
		return nil
	})
}

func (h *SSEHandlers) HandleSort(w http.ResponseWriter, r *http.Request) {
	h.interact(w, r, func(s *dashboard.Session, _ signals) error {
		raw := r.URL.Query().Get("field")
		field := sorting.ParseField(raw)
		if string(field) != raw {
			return apperrors.BadRequest(fmt.Sprintf("unknown sort field %q", raw))
		}
		s.Controller.ToggleSort(field)
		return nil
	})
}

func (h *SSEHandlers) HandlePage(w http.ResponseWriter, r *http.Request) {
	h.interact(w, r, func(s *dashboard.Session, _ signals) error {
		q := r.URL.Query()
		switch q.Get("dir") {
		case "prev":
			s.Controller.PrevPage()
			return nil
		case "next":
			s.Controller.NextPage()
			return nil
		}
		n, err := strconv.Atoi(q.Get("n"))
		if err != nil {
			return apperrors.BadRequest("page must be a number")
		}
		s.Controller.GoToPage(n)
		return nil
	})
}

func (h *SSEHandlers) HandleOpenDetail(w http.ResponseWriter, r *http.Request) {
	h.interact(w, r, func(s *dashboard.Session, _ signals) error {
		id, err := strconv.Atoi(r.URL.Query().Get("id"))
		if err != nil || id <= 0 {
			return apperrors.BadRequest("customer id must be a positive integer")
		}
		s.Controller.OpenDetail(id)
		return nil
	})
}

func (h *SSEHandlers) HandleCloseDetail(w http.ResponseWriter, r *http.Request) {
	h.interact(w, r, func(s *dashboard.Session, _ signals) error {
		s.Controller.CloseDetail()
		return nil
	})
}

// HandleRange applies the date inputs. mode=from and mode=to apply a single
// picker; mode=single filters to the from day.
func (h *SSEHandlers) HandleRange(w http.ResponseWriter, r *http.Request) {
	h.interact(w, r, func(s *dashboard.Session, sig signals) error {
		switch mode := r.URL.Query().Get("mode"); mode {
		case "from":
			s.Controller.SetDateFrom(sig.From)
		case "to":
			s.Controller.SetDateTo(sig.To)
		case "single":
			s.Controller.SetSingleDate(sig.From)
		case "":
			s.Controller.SetDateRange(sig.From, sig.To)
		default:
			return apperrors.BadRequest(fmt.Sprintf("unknown range mode %q", mode))
		}
		return nil
	})
}

// HandleResetRange clears the range and empties the date inputs.
func (h *SSEHandlers) HandleResetRange(w http.ResponseWriter, r *http.Request) {
	var search string
	sse := h.interact(w, r, func(s *dashboard.Session, sig signals) error {
		s.Controller.ResetDates()
		search = sig.Search
		return nil
	})
	if sse == nil {
		return
	}
	if err := patchInputs(sse, search, "", ""); err != nil {
		h.logger.Debug("reset inputs", "error", err)
	}
}

// HandleNavigate applies a back/forward step: q is the query string the
// browser now shows.
func (h *SSEHandlers) HandleNavigate(w http.ResponseWriter, r *http.Request) {
	h.interact(w, r, func(s *dashboard.Session, _ signals) error {
		s.Location.Navigate(r.URL.Query().Get("q"))
		return nil
	})
}
