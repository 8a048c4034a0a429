package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/integrityos/pipeline-hub/internal/auth"
	"github.com/integrityos/pipeline-hub/internal/domain"
	"github.com/integrityos/pipeline-hub/internal/integrity"
	"github.com/integrityos/pipeline-hub/internal/report"
	"github.com/integrityos/pipeline-hub/internal/service"
	"github.com/integrityos/pipeline-hub/internal/simulate"
)

const dateLayout = "2006-01-02"

type handlers struct {
	svcs *service.Services
	auth *auth.Service
}

func Register(app *fiber.App, svcs *service.Services, authSvc *auth.Service) {
	h := &handlers{svcs: svcs, auth: authSvc}

	app.Get("/health", h.health)

	// Routes before the authenticate group are public.
	api := app.Group("/api")
	api.Post("/auth/login", h.login)
	api.Get("/pipelines", h.listPipelines)
	api.Get("/pipeline/:id", h.getPipeline)
	api.Get("/sensor/:id", h.latestReading)
	api.Get("/sensor/:id/history", h.history)

	g := api.Group("", authenticate(authSvc))
	g.Post("/auth/logout", h.logout)
	g.Get("/auth/me", func(c *fiber.Ctx) error { return c.JSON(currentUser(c)) })

	g.Post("/pipelines", requireManager, h.createPipeline)
	g.Put("/pipelines/:id", requireManager, h.updatePipeline)
	g.Post("/sensors/:id", requireManager, h.recordReading)

	g.Get("/analytics", h.analytics)
	g.Get("/summary", h.summary)
	g.Get("/summary/export", h.exportSummary)

	g.Post("/predict", h.predict)
	g.Get("/predict/:id", h.predictPipeline)

	g.Get("/report", h.report)
	g.Post("/report/publish", requireManager, h.publishReport)
	g.Get("/reports", requireManager, h.listReports)
	g.Get("/reports/:id/:file", requireManager, h.fetchReport)

	d := g.Group("/devices", requireManager)
	d.Get("", h.listDevices)
	d.Post("", h.createDevice)
	d.Put("/:id/assign", h.assignDevice)
	d.Post("/:id/restart", h.restartDevice)
	d.Post("/:id/test", h.testDevice)

	g.Get("/alerts", h.listAlerts)
	g.Post("/alerts/:id/acknowledge", requireManager, h.acknowledgeAlert)
}

func (h *handlers) health(c *fiber.Ctx) error {
	if err := h.svcs.Repos.Ping(c.UserContext()); err != nil {
		log.Error().Err(err).Msg("database ping failed")
		return c.Status(fiber.StatusServiceUnavailable).SendString("database unavailable")
	}
	return c.SendString("ok")
}

func badRequest(err error) error { return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err) }

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	return t, nil
}

func pipelineList(c *fiber.Ctx) []string {
	var ids []string
	for _, id := range strings.Split(c.Query("pipelines"), ",") {
		if id = simulate.Normalize(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func attachment(c *fiber.Ctx, rr service.RenderedReport) error {
	c.Attachment(rr.FileName)
	c.Set(fiber.HeaderContentType, rr.ContentType)
	return c.Send(rr.Body)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (h *handlers) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badRequest(err))
	}
	sess, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(loginResponse{Token: sess.Token, User: sess.User(), ExpiresAt: sess.ExpiresAt})
}

func (h *handlers) logout(c *fiber.Ctx) error {
	if err := h.auth.Logout(c.UserContext(), token(c)); err != nil {
		return fail(c, err)
	}
	c.ClearCookie(SessionCookie)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) listPipelines(c *fiber.Ctx) error {
	items, err := h.svcs.Pipelines.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(items)
}

func (h *handlers) createPipeline(c *fiber.Ctx) error {
	var in service.PipelineInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, badRequest(err))
	}
	p, err := h.svcs.Pipelines.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *handlers) updatePipeline(c *fiber.Ctx) error {
	var in service.PipelineInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, badRequest(err))
	}
	p, err := h.svcs.Pipelines.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

func (h *handlers) getPipeline(c *fiber.Ctx) error {
	p, err := h.svcs.Pipelines.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

func (h *handlers) latestReading(c *fiber.Ctx) error {
	r, err := h.svcs.Readings.Latest(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(r)
}

func (h *handlers) history(c *fiber.Ctx) error {
	hist, err := h.svcs.Readings.History(c.UserContext(), c.Params("id"), c.QueryInt("hours", simulate.DefaultHistoryHours))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(hist)
}

func (h *handlers) recordReading(c *fiber.Ctx) error {
	var r domain.SensorReading
	if err := c.BodyParser(&r); err != nil {
		return fail(c, badRequest(err))
	}
	r.PipelineID = c.Params("id")
	stored, err := h.svcs.Readings.Record(c.UserContext(), r)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(stored)
}

func (h *handlers) analytics(c *fiber.Ctx) error {
	out, err := h.svcs.Analytics.Analyze(c.UserContext(), pipelineList(c), c.QueryInt("hours", simulate.DefaultHistoryHours))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(out)
}

func (h *handlers) summary(c *fiber.Ctx) error {
	sum, err := h.svcs.Analytics.Summary(c.UserContext(), pipelineList(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(sum)
}

func (h *handlers) exportSummary(c *fiber.Ctx) error {
	sum, err := h.svcs.Analytics.Summary(c.UserContext(), pipelineList(c))
	if err != nil {
		return fail(c, err)
	}
	rr, err := h.svcs.Reports.SummaryText(sum)
	if err != nil {
		return fail(c, err)
	}
	return attachment(c, rr)
}

func (h *handlers) predict(c *fiber.Ctx) error {
	var in integrity.PredictionInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, badRequest(err))
	}
	p, err := h.svcs.Predictions.Predict(c.UserContext(), in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

func (h *handlers) predictPipeline(c *fiber.Ctx) error {
	p, err := h.svcs.Predictions.ForPipeline(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

func (h *handlers) report(c *fiber.Ctx) error {
	f, err := report.ParseFormat(c.Query("format"))
	if err != nil {
		return fail(c, err)
	}
	date, err := parseDate(c.Query("date"))
	if err != nil {
		return fail(c, err)
	}
	rr, err := h.svcs.Reports.Render(c.UserContext(), c.Query("pipeline", "A"), date, f)
	if err != nil {
		return fail(c, err)
	}
	return attachment(c, rr)
}

func (h *handlers) listReports(c *fiber.Ctx) error {
	keys, err := h.svcs.Reports.List(c.UserContext(), c.Query("pipeline"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"reports": keys})
}

func (h *handlers) fetchReport(c *fiber.Ctx) error {
	rr, err := h.svcs.Reports.Fetch(c.UserContext(), c.Params("id"), c.Params("file"))
	if err != nil {
		return fail(c, err)
	}
	return attachment(c, rr)
}

type publishRequest struct {
	Pipeline string `json:"pipeline"`
	Date     string `json:"date"`
	Format   string `json:"format"`
	// Async hands the report to the daily report function instead.
	Async bool `json:"async"`
}

func (h *handlers) publishReport(c *fiber.Ctx) error {
	var req publishRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badRequest(err))
	}
	if req.Pipeline == "" {
		req.Pipeline = "A"
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return fail(c, err)
	}
	if req.Async {
		if err := h.svcs.Reports.Schedule(c.UserContext(), req.Pipeline, date); err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "scheduled"})
	}
	f, err := report.ParseFormat(req.Format)
	if err != nil {
		return fail(c, err)
	}
	pub, err := h.svcs.Reports.Publish(c.UserContext(), req.Pipeline, date, f)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pub)
}

func (h *handlers) listDevices(c *fiber.Ctx) error {
	list, err := h.svcs.Devices.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(list)
}

func (h *handlers) createDevice(c *fiber.Ctx) error {
	var in service.DeviceInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, badRequest(err))
	}
	d, err := h.svcs.Devices.Create(c.UserContext(), in)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

func (h *handlers) assignDevice(c *fiber.Ctx) error {
	var body struct {
		PipelineID string `json:"pipeline_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, badRequest(err))
	}
	d, err := h.svcs.Devices.Assign(c.UserContext(), c.Params("id"), body.PipelineID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(d)
}

func (h *handlers) restartDevice(c *fiber.Ctx) error {
	d, err := h.svcs.Devices.Restart(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(d)
}

func (h *handlers) testDevice(c *fiber.Ctx) error {
	res, err := h.svcs.Devices.TestConnection(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (h *handlers) listAlerts(c *fiber.Ctx) error {
	alerts, err := h.svcs.Alerts.List(c.UserContext(), c.Query("severity"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(alerts)
}

func (h *handlers) acknowledgeAlert(c *fiber.Ctx) error {
	if err := h.svcs.Alerts.Acknowledge(c.UserContext(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
