// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package api provides the HTTP interface to the place sensors.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wneessen/placesd/internal/attrs"
	"github.com/wneessen/placesd/internal/geobus"
	"github.com/wneessen/placesd/internal/logger"
	"github.com/wneessen/placesd/internal/place"
)

const (
	shutdownTimeout   = time.Second * 5
	readHeaderTimeout = time.Second * 10
)

var (
	ErrUnknownSensor  = errors.New("unknown sensor")
	ErrUnknownTracker = errors.New("unknown tracker")
)

// Backend gives the API access to the sensors and trackers of the service.
type Backend interface {
	Sensors() []*place.Sensor
	Sensor(id string) (*place.Sensor, bool)
	RemoveSensor(ctx context.Context, id string) error
	PushLocation(tracker string, coord geobus.Coordinate) error
	Trackers() []Tracker
}

// Tracker is the last known position of a tracked device.
type Tracker struct {
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Source    string    `json:"source"`
	Zone      string    `json:"zone"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Server is the HTTP API server.
type Server struct {
	backend Backend
	events  *EventLog
	logger  *logger.Logger
	router  *gin.Engine
	addr    string
}

type sensorResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Tracker    string      `json:"tracker"`
	State      string      `json:"state"`
	Attributes attrs.Store `json:"attributes"`
}

type updateResponse struct {
	Outcome place.Outcome  `json:"outcome"`
	Sensor  sensorResponse `json:"sensor"`
}

type locationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Accuracy  *float64 `json:"accuracy"`
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New returns a Server listening on addr. metrics may be nil.
func New(addr string, backend Backend, events *EventLog, metrics http.Handler, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	server := &Server{
		backend: backend,
		events:  events,
		logger:  log.With(slog.String("component", "api")),
		router:  gin.New(),
		addr:    addr,
	}
	server.router.Use(gin.Recovery(), server.logRequest)

	server.router.GET("/healthz", server.health)
	if metrics != nil {
		server.router.GET("/metrics", gin.WrapH(metrics))
	}
	v1 := server.router.Group("/api/v1")
	v1.GET("/sensors", server.listSensors)
	v1.GET("/sensors/:id", server.getSensor)
	v1.PATCH("/sensors/:id", server.renameSensor)
	v1.GET("/sensors/:id/snapshot", server.getSnapshot)
	v1.POST("/sensors/:id/update", server.updateSensor)
	v1.DELETE("/sensors/:id", server.deleteSensor)
	v1.GET("/trackers", server.listTrackers)
	v1.POST("/trackers/:id/location", server.pushLocation)
	v1.GET("/events", server.listEvents)
	return server
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", slog.String("addr", s.addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequest(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request served", slog.String("method", c.Request.Method),
		slog.String("path", c.FullPath()), slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", time.Since(start)))
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listSensors(c *gin.Context) {
	sensors := s.backend.Sensors()
	out := make([]sensorResponse, 0, len(sensors))
	for _, sensor := range sensors {
		out = append(out, viewSensor(sensor))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getSensor(c *gin.Context) {
	sensor, ok := s.backend.Sensor(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: ErrUnknownSensor.Error()})
		return
	}
	c.JSON(http.StatusOK, viewSensor(sensor))
}

// renameSensor changes the display name of a sensor. The unique id and the snapshot key stay the same.
func (s *Server) renameSensor(c *gin.Context) {
	sensor, ok := s.backend.Sensor(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: ErrUnknownSensor.Error()})
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "name must not be empty"})
		return
	}
	sensor.SetName(name)
	c.JSON(http.StatusOK, viewSensor(sensor))
}

// getSnapshot returns every attribute of the sensor in its persisted form.
func (s *Server) getSnapshot(c *gin.Context) {
	sensor, ok := s.backend.Sensor(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: ErrUnknownSensor.Error()})
		return
	}
	c.JSON(http.StatusOK, sensor.Snapshot())
}

func (s *Server) updateSensor(c *gin.Context) {
	sensor, ok := s.backend.Sensor(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: ErrUnknownSensor.Error()})
		return
	}
	outcome := sensor.Update(c.Request.Context(), "api request")
	c.JSON(http.StatusOK, updateResponse{Outcome: outcome, Sensor: viewSensor(sensor)})
}

func (s *Server) deleteSensor(c *gin.Context) {
	err := s.backend.RemoveSensor(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, ErrUnknownSensor):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case err != nil:
		s.logger.Error("failed to remove sensor", logger.Err(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) listTrackers(c *gin.Context) {
	c.JSON(http.StatusOK, s.backend.Trackers())
}

func (s *Server) pushLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	coord := geobus.Coordinate{Lat: *req.Latitude, Lon: *req.Longitude, Acc: geobus.AccuracyUnknown}
	if req.Accuracy != nil {
		coord.Acc = *req.Accuracy
	}
	if !coord.Valid() || coord.Acc < 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid coordinate"})
		return
	}

	err := s.backend.PushLocation(c.Param("id"), coord)
	switch {
	case errors.Is(err, ErrUnknownTracker):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		c.Status(http.StatusAccepted)
	}
}

func (s *Server) listEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, s.events.Recent(limit))
}

func viewSensor(sensor *place.Sensor) sensorResponse {
	return sensorResponse{
		ID:         sensor.UniqueID(),
		Name:       sensor.Name(),
		Tracker:    sensor.TrackerID(),
		State:      sensor.NativeValue(),
		Attributes: sensor.Attributes(),
	}
}
