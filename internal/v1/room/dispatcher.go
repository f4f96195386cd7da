package room

import (
	"go.uber.org/zap"
	"k8s.io/utils/set"

	"github.com/collabboard/backend/go/internal/v1/logging"
	"github.com/collabboard/backend/go/internal/v1/metrics"
	"github.com/collabboard/backend/go/internal/v1/protocol"
	"github.com/collabboard/backend/go/internal/v1/types"
)

// ClientSession is the per-connection join state, stamped by the dispatcher
// on a successful join and read by the transport on disconnect. Only the
// connection's read loop touches it.
type ClientSession struct {
	RoomID types.RoomIDType
	UserID types.UserIDType
}

// InRoom reports whether the connection has completed a join.
func (cs *ClientSession) InRoom() bool {
	return cs.UserID != ""
}

// perRoomOps are the message types that require a completed join. Frames
// of these types from an unjoined connection are dropped without a reply.
var perRoomOps = set.New(
	protocol.TypeCursorMove,
	protocol.TypeStrokeStart,
	protocol.TypeStrokeAdd,
	protocol.TypeStrokeEnd,
	protocol.TypeStrokeMove,
)

// Dispatcher routes parsed frames from a connection to the room service.
//
// Error policy: protocol-shape failures on the control path (malformed
// frames, unknown types, bad joins) get error frames with seq 0; per-room
// operation failures (rate limiting, stroke validation, unjoined senders)
// are dropped silently so a hostile or buggy client cannot generate
// amplified error traffic.
type Dispatcher struct {
	svc *Service
}

func NewDispatcher(svc *Service) *Dispatcher {
	return &Dispatcher{svc: svc}
}

// Dispatch handles one inbound frame.
func (d *Dispatcher) Dispatch(conn types.Conn, sess *ClientSession, raw []byte) {
	msg, err := protocol.Parse(raw)
	if err != nil {
		conn.Send(protocol.NewError(protocol.ErrMalformedMessage, 0))
		metrics.MessagesProcessed.WithLabelValues("malformed", "error").Inc()
		return
	}

	t := msg.MessageType()
	if perRoomOps.Has(t) && !sess.InRoom() {
		metrics.MessagesProcessed.WithLabelValues(string(t), "dropped").Inc()
		return
	}

	switch t {
	case protocol.TypeJoinRoom:
		d.handleJoin(conn, sess, msg)
	case protocol.TypeCursorMove:
		d.handleCursorMove(sess, msg)
	case protocol.TypeStrokeStart, protocol.TypeStrokeAdd, protocol.TypeStrokeEnd, protocol.TypeStrokeMove:
		d.handleStroke(sess, t, msg)
	case protocol.TypePing:
		conn.Send(protocol.NewPong(msg.Seq))
		metrics.MessagesProcessed.WithLabelValues(string(t), "ok").Inc()
	default:
		// Unrecognized tags and server-only types alike.
		conn.Send(protocol.NewError(protocol.ErrInvalidMessageType, 0))
		metrics.MessagesProcessed.WithLabelValues("unknown", "error").Inc()
	}
}

// Disconnect tears down the session's room membership, if any.
func (d *Dispatcher) Disconnect(sess *ClientSession) {
	if !sess.InRoom() {
		return
	}
	d.svc.LeaveRoom(sess.RoomID, sess.UserID)
	*sess = ClientSession{}
}

func (d *Dispatcher) handleJoin(conn types.Conn, sess *ClientSession, msg *protocol.Message) {
	if sess.InRoom() {
		conn.Send(protocol.NewError(protocol.ErrAlreadyInRoom, 0))
		metrics.MessagesProcessed.WithLabelValues(string(protocol.TypeJoinRoom), "error").Inc()
		return
	}
	data, ok := protocol.DecodeJoinRoom(msg.Data)
	if !ok {
		conn.Send(protocol.NewError(protocol.ErrMissingField, 0))
		metrics.MessagesProcessed.WithLabelValues(string(protocol.TypeJoinRoom), "error").Inc()
		return
	}

	result := d.svc.JoinRoom(types.RoomIDType(data.RoomID), types.DisplayNameType(data.UserName), data.Password, conn)
	if result.Err != "" {
		conn.Send(protocol.NewError(result.Err, 0))
		metrics.MessagesProcessed.WithLabelValues(string(protocol.TypeJoinRoom), "error").Inc()
		return
	}
	sess.RoomID = types.RoomIDType(data.RoomID)
	sess.UserID = result.UserID
	metrics.MessagesProcessed.WithLabelValues(string(protocol.TypeJoinRoom), "ok").Inc()
}

func (d *Dispatcher) handleCursorMove(sess *ClientSession, msg *protocol.Message) {
	data, ok := protocol.DecodeCursorMove(msg.Data)
	if !ok {
		metrics.MessagesProcessed.WithLabelValues(string(protocol.TypeCursorMove), "dropped").Inc()
		return
	}
	if code := d.svc.HandleCursorMove(sess.RoomID, sess.UserID, data); code != "" {
		metrics.MessagesProcessed.WithLabelValues(string(protocol.TypeCursorMove), "dropped").Inc()
		return
	}
	metrics.MessagesProcessed.WithLabelValues(string(protocol.TypeCursorMove), "ok").Inc()
}

func (d *Dispatcher) handleStroke(sess *ClientSession, t protocol.Type, msg *protocol.Message) {
	var code protocol.ErrorCode
	decoded := true

	switch t {
	case protocol.TypeStrokeStart:
		data, ok := protocol.DecodeStrokeStart(msg.Data)
		if decoded = ok; ok {
			code = d.svc.HandleStrokeStart(sess.RoomID, sess.UserID, data)
		}
	case protocol.TypeStrokeAdd:
		data, ok := protocol.DecodeStrokeAdd(msg.Data)
		if decoded = ok; ok {
			code = d.svc.HandleStrokeAdd(sess.RoomID, sess.UserID, data)
		}
	case protocol.TypeStrokeEnd:
		data, ok := protocol.DecodeStrokeEnd(msg.Data)
		if decoded = ok; ok {
			code = d.svc.HandleStrokeEnd(sess.RoomID, sess.UserID, data)
		}
	case protocol.TypeStrokeMove:
		data, ok := protocol.DecodeStrokeMove(msg.Data)
		if decoded = ok; ok {
			code = d.svc.HandleStrokeMove(sess.RoomID, sess.UserID, data)
		}
	}

	if !decoded || code != "" {
		if code != "" {
			logging.Warn(nil, "stroke operation rejected",
				zap.String("type", string(t)),
				zap.String("code", string(code)),
				zap.String("user_id", string(sess.UserID)))
		}
		metrics.MessagesProcessed.WithLabelValues(string(t), "dropped").Inc()
		return
	}
	metrics.MessagesProcessed.WithLabelValues(string(t), "ok").Inc()
}
