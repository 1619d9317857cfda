package websocket

import (
	"caption-studio/scene"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// SceneLookup resolves live scenes by ID.
type SceneLookup interface {
	Get(id string) (*scene.Editor, bool)
}

// Hub pushes scene changes to clients watching a scene. Each scene is a
// socket.io room named after the scene ID.
type Hub struct {
	srv    *socketio.Server
	scenes SceneLookup

	mu      sync.RWMutex
	viewers map[string]int
}

func NewHub(scenes SceneLookup) *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	h := &Hub{
		srv:     socketio.NewServer(nil, opts),
		scenes:  scenes,
		viewers: make(map[string]int),
	}
	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	h.srv.On("connection", h.onConnection)
	return h
}

func (h *Hub) Server() *socketio.Server {
	return h.srv
}

func (h *Hub) Close() {
	h.srv.Close(nil)
}

// Viewers reports the number of sockets joined to a scene.
func (h *Hub) Viewers(sceneID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.viewers[sceneID]
}

func (h *Hub) setViewers(sceneID string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 {
		delete(h.viewers, sceneID)
		return
	}
	h.viewers[sceneID] = n
}

// Publish broadcasts a scene's layers to its room. Its signature matches
// scene.Observer.
func (h *Hub) Publish(sceneID string, layers []scene.LayerDescriptor) {
	if err := h.srv.To(socketio.Room(sceneID)).Emit("scene-change", layers); err != nil {
		logrus.WithFields(logrus.Fields{"scene_id": sceneID, "error": err}).Warn("Failed to publish scene change")
	}
}

func (h *Hub) onConnection(clients ...any) {
	socket, ok := clients[0].(*socketio.Socket)
	if !ok {
		return
	}
	logrus.WithField("socket_id", socket.Id()).Debug("Socket connected")

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-scene", func(datas ...any) {
		h.join(socket, datas)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("disconnecting", func(datas ...any) {
		h.leaveAll(socket)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("disconnect", func(datas ...any) {
		socket.RemoveAllListeners("")
	})
}

func (h *Hub) join(socket *socketio.Socket, datas []any) {
	ack, args := extractAck(datas)
	if len(args) == 0 {
		err := fmt.Errorf("scene id is required")
		respond(socket, ack, "join-scene-ack", errorPayload(err), err)
		return
	}
	sceneID, ok := args[0].(string)
	if !ok || sceneID == "" {
		err := fmt.Errorf("invalid scene id")
		respond(socket, ack, "join-scene-ack", errorPayload(err), err)
		return
	}
	editor, ok := h.scenes.Get(sceneID)
	if !ok {
		err := fmt.Errorf("scene %s not found", sceneID)
		respond(socket, ack, "join-scene-ack", errorPayload(err), err)
		return
	}

	room := socketio.Room(sceneID)
	socket.Join(room)
	log := logrus.WithFields(logrus.Fields{"socket_id": socket.Id(), "scene_id": sceneID})

	h.srv.In(room).FetchSockets()(func(sockets []*socketio.RemoteSocket, err error) {
		if err != nil {
			log.WithError(err).Warn("Failed to count scene viewers")
			respond(socket, ack, "join-scene-ack", errorPayload(err), err)
			return
		}

		count := len(sockets)
		h.setViewers(sceneID, count)
		log.WithField("viewers", count).Info("Socket joined scene")

		layers := editor.DescribeLayers()
		_ = h.srv.In(room).Emit("viewer-change", count)
		_ = socket.Emit("scene-change", layers)
		respond(socket, ack, "join-scene-ack", map[string]any{
			"status":  "ok",
			"viewers": count,
			"layers":  layers,
		}, nil)
	})
}

func (h *Hub) leaveAll(socket *socketio.Socket) {
	me := socket.Id()
	for _, room := range socket.Rooms().Keys() {
		if string(room) == string(me) {
			continue
		}
		sceneID := string(room)
		h.srv.In(room).FetchSockets()(func(sockets []*socketio.RemoteSocket, _ error) {
			remaining := 0
			for _, s := range sockets {
				if s.Id() != me {
					remaining++
				}
			}
			h.setViewers(sceneID, remaining)
			logrus.WithFields(logrus.Fields{
				"socket_id": me,
				"scene_id":  sceneID,
				"viewers":   remaining,
			}).Info("Socket left scene")
			if remaining > 0 {
				_ = h.srv.In(room).Emit("viewer-change", remaining)
			}
		})
	}
}
