package controller

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/internal/dto"
	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/internal/pkg/serverutils"
	"github.com/yesahmedyes/lecture-assistant/internal/service"
	internalWS "github.com/yesahmedyes/lecture-assistant/internal/websocket"
	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Feedback(ctx *fiber.Ctx) error
	Result(ctx *fiber.Ctx) error
	Trace(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
	logger  logger.ILogger
}

func NewSessionController(service service.ISessionService, log logger.ILogger) ISessionController {
	return &sessionController{service: service, logger: log}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session/v1")
	h.Post("/start", c.Start)
	h.Get("", c.List)
	h.Get(":id/status", c.Status)
	h.Post(":id/feedback", c.Feedback)
	h.Get(":id/result", c.Result)
	h.Get(":id/trace", c.Trace)
	h.Delete(":id", c.Delete)
	h.Get(":id/ws", c.ServeWs)
}

func (c *sessionController) Start(ctx *fiber.Ctx) error {
	var req dto.StartSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %s", pipeline.ErrInvalidParameters, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Start(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success start session", res))
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	res, err := c.service.List(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *sessionController) Status(ctx *fiber.Ctx) error {
	id, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Status(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session status", res))
}

func (c *sessionController) Feedback(ctx *fiber.Ctx) error {
	id, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	var req dto.SubmitFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %s", pipeline.ErrInvalidParameters, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.Feedback(ctx.Context(), id, &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success submit feedback", nil))
}

func (c *sessionController) Result(ctx *fiber.Ctx) error {
	id, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Result(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session result", res))
}

func (c *sessionController) Trace(ctx *fiber.Ctx) error {
	id, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.Trace(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get session trace", res))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	id, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	if err := c.service.Delete(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

// ServeWs upgrades the connection and streams the session's lifecycle
// events. The session must exist before the upgrade is accepted.
func (c *sessionController) ServeWs(ctx *fiber.Ctx) error {
	id, err := parseSessionId(ctx)
	if err != nil {
		return err
	}

	broadcaster, err := c.service.Broadcaster(id)
	if err != nil {
		return err
	}

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			internalWS.ServeWs(conn, id, broadcaster, c.logger)
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}

func parseSessionId(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid session id", pipeline.ErrInvalidParameters)
	}
	return id, nil
}
