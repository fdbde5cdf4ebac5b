package server

import (
	"errors"
	"net"
	"strconv"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/ringdb/ringdb/internal/coordinator"
	"github.com/ringdb/ringdb/internal/query"
	"github.com/ringdb/ringdb/internal/storage"
	"github.com/ringdb/ringdb/internal/wire/cql"
)

// handleClient drives one client connection through the protocol state
// machine: STARTUP -> READY -> QUERY -> RESULT, then close. A malformed
// frame or dropped connection at any edge closes the connection.
func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()

	log := s.log.WithFields(logrus.Fields{
		"conn":   xid.New().String(),
		"remote": conn.RemoteAddr().String(),
	})

	frame, err := cql.ReadFrame(conn)
	if err != nil {
		log.WithError(err).Debug("failed to read first frame")
		return
	}
	stream := frame.Header.Stream

	if frame.Header.Opcode != cql.OpStartup {
		s.writeError(conn, stream, &cql.ErrorBody{
			Code:    cql.ErrProtocolError,
			Message: "Connection not started with startup message",
		}, log)
		return
	}
	if _, err := cql.ParseStartup(frame.Body); err != nil {
		s.writeError(conn, stream, &cql.ErrorBody{
			Code:    cql.ErrProtocolError,
			Message: err.Error(),
		}, log)
		return
	}
	if err := cql.WriteResponse(conn, cql.OpReady, stream, nil); err != nil {
		log.WithError(err).Debug("failed to write READY")
		return
	}

	frame, err = cql.ReadFrame(conn)
	if err != nil {
		log.WithError(err).Debug("failed to read query frame")
		return
	}
	stream = frame.Header.Stream

	if frame.Header.Opcode != cql.OpQuery {
		s.writeError(conn, stream, &cql.ErrorBody{
			Code:    cql.ErrProtocolError,
			Message: "Expected a QUERY frame",
		}, log)
		return
	}

	msg, err := cql.ParseQuery(frame.Body)
	if err != nil {
		s.writeError(conn, stream, &cql.ErrorBody{
			Code:    cql.ErrProtocolError,
			Message: err.Error(),
		}, log)
		return
	}

	q, err := query.Parse(msg.Statement)
	if err != nil {
		s.writeError(conn, stream, &cql.ErrorBody{
			Code:    cql.ErrSyntaxError,
			Message: err.Error(),
		}, log)
		return
	}

	log = log.WithFields(logrus.Fields{
		"statement":   q.Kind.String(),
		"table":       q.Table,
		"consistency": msg.Consistency.String(),
	})

	result, err := s.coord.Execute(q, msg.Consistency)
	if err != nil {
		s.writeError(conn, stream, s.errorBody(q, err), log)
		return
	}

	if !result.HasRows {
		if err := cql.WriteResponse(conn, cql.OpResult, stream, cql.EncodeVoidResult()); err != nil {
			log.WithError(err).Debug("failed to write RESULT")
		}
		return
	}

	body, err := s.rowsBody(q, result)
	if err != nil {
		s.writeError(conn, stream, &cql.ErrorBody{
			Code:    cql.ErrServerError,
			Message: err.Error(),
		}, log)
		return
	}
	if err := cql.WriteResponse(conn, cql.OpResult, stream, body); err != nil {
		log.WithError(err).Debug("failed to write RESULT")
	}
}

// rowsBody builds the RESULT frame body: column specs derived from the
// table schema plus the reconciled rows.
func (s *Server) rowsBody(q *query.Query, result *coordinator.Result) ([]byte, error) {
	tableSchema, err := s.cat.Schema(s.coord.Keyspace(), q.Table)
	if err != nil {
		return nil, err
	}

	specs := make([]cql.ColumnSpec, len(result.Columns))
	for i, col := range result.Columns {
		spec := cql.ColumnSpec{Name: col, Type: cql.TypeVarchar}
		if t, ok := tableSchema.TypeOf(col); ok {
			spec.Type = cql.DataTypeFor(t)
		}
		specs[i] = spec
	}

	return cql.EncodeRowsResult(&cql.RowsResult{
		Keyspace: s.coord.Keyspace(),
		Table:    q.Table,
		Columns:  specs,
		Rows:     result.Rows,
	})
}

// errorBody maps coordinator and storage failures to client error frames.
func (s *Server) errorBody(q *query.Query, err error) *cql.ErrorBody {
	switch {
	case errors.Is(err, coordinator.ErrMissingPrimaryKey):
		return &cql.ErrorBody{Code: cql.ErrInvalid, Message: "Primary key columns not provided"}
	case errors.Is(err, coordinator.ErrNotEnoughReplicas):
		return &cql.ErrorBody{Code: cql.ErrServerError, Message: "Not enough nodes responded"}
	case errors.Is(err, storage.ErrTableExists):
		return &cql.ErrorBody{
			Code:    cql.ErrAlreadyExists,
			Message: "Table already exists",
			Extras: map[string]string{
				"keyspace": s.coord.Keyspace(),
				"table":    q.Table,
			},
		}
	case errors.Is(err, storage.ErrTableNotFound),
		errors.Is(err, storage.ErrKeyspaceNotFound),
		errors.Is(err, query.ErrUnknownColumn):
		return &cql.ErrorBody{Code: cql.ErrInvalid, Message: err.Error()}
	default:
		return &cql.ErrorBody{Code: cql.ErrServerError, Message: err.Error()}
	}
}

func (s *Server) writeError(conn net.Conn, stream uint16, e *cql.ErrorBody, log *logrus.Entry) {
	body, err := cql.EncodeError(e)
	if err != nil {
		log.WithError(err).Error("failed to encode error frame")
		return
	}
	if err := cql.WriteResponse(conn, cql.OpError, stream, body); err != nil {
		log.WithError(err).Debug("failed to write ERROR")
		return
	}
	log.WithFields(logrus.Fields{"code": strconv.Itoa(int(e.Code)), "message": e.Message}).
		Info("query failed")
}
