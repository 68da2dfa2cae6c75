// Arcadebox games
//
// One screen shows the game, any number of phones steer it.
//
// Features:
// - Rooms per game code: /path/:gameid, /path/:gameid/play and /path/:gameid/ws
// - One display per room; sockets without a join token can only take that seat
// - Controllers join through a signed link, shown on the display as a QR code
// - Each room runs its own authoritative game session on the server
// - Rooms auto-reaped after configurable idle timeout

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/arcadebox/games/room"
	"github.com/Seednode/arcadebox/games/session"
)

const (
	readLimit  = 4096
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	writeWait  = 10 * time.Second
	qrSize     = 320
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Arcade serves one game variant under its own path.
type Arcade struct {
	cfg     *Config
	variant string
	title   string
	path    string
	rooms   *room.Manager
	signer  *room.Signer
}

// newArcade builds the room manager for a variant. Every room it creates
// gets a session from start, torn down when the room closes.
func newArcade(ctx context.Context, cfg *Config, variant, title string, signer *room.Signer, start func(*room.Room) session.Runner) *Arcade {
	a := &Arcade{
		cfg:     cfg,
		variant: variant,
		title:   title,
		path:    cfg.prefix + "/" + variant,
		signer:  signer,
	}

	a.rooms = room.NewManager(cfg.sessionTimeout, func(r *room.Room) {
		sess := start(r)

		r.OnClose(func() {
			sess.Close()
			sess.Wait()
		})

		go func() {
			if err := sess.Run(ctx); err != nil {
				logf(cfg, "GAMES: Session %s/%s ended: %v", variant, r.Code, err)
			}
		}()
	}, logger(cfg))

	return a
}

// Run reaps idle rooms until ctx is done.
func (a *Arcade) Run(ctx context.Context) error {
	return a.rooms.Run(ctx)
}

// register sets up routes so that:
//   - $path                  → redirects to a new room
//   - $path/:gameid          → display page
//   - $path/:gameid/play     → controller page, needs ?t=<join token>
//   - $path/:gameid/ws       → WebSocket for that room
//   - $path/:gameid/qr       → PNG QR code of the controller link
func (a *Arcade) register(mux *httprouter.Router) {
	mux.GET(a.path, a.redirectNewGame())
	mux.GET(a.path+"/:gameid", a.serveDisplay())
	mux.GET(a.path+"/:gameid/play", a.serveController())
	mux.GET(a.path+"/:gameid/ws", a.serveWS())
	mux.GET(a.path+"/:gameid/qr", a.serveQR())
}

func (a *Arcade) redirectNewGame() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code := a.rooms.Create().Code

		http.Redirect(w, r, a.path+"/"+code, http.StatusTemporaryRedirect)
	}
}

func (a *Arcade) serveDisplay() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("gameid")
		if !room.ValidCode(code) {
			a.serveError(w, http.StatusNotFound, "Game Not Found", "No game with that code. Start a new one.")

			return
		}
		a.rooms.GetOrCreate(code)

		a.servePage(w, r, gamePage(a.cfg, a.title, a.variant, code, string(room.RoleDisplay)))
	}
}

func (a *Arcade) serveController() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("gameid")
		if _, ok := a.rooms.Get(code); !ok {
			a.serveError(w, http.StatusNotFound, "Game Not Found", "This game has ended. Scan the code on the screen again.")

			return
		}

		if _, err := a.signer.Verify(r.URL.Query().Get("t"), code); err != nil {
			a.serveError(w, http.StatusForbidden, "Invalid Link", "This join link is not valid. Scan the code on the screen again.")

			return
		}

		a.servePage(w, r, gamePage(a.cfg, a.title, a.variant, code, string(room.RoleController)))
	}
}

func (a *Arcade) servePage(w http.ResponseWriter, r *http.Request, body string) {
	startTime := time.Now()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(a.cfg, w)

	written, err := io.WriteString(w, body)
	if err != nil {
		return
	}

	logf(a.cfg, "SERVE: %s page (%s) to %s in %s",
		a.title,
		humanReadableSize(int64(written)),
		realIP(r),
		time.Since(startTime).Round(time.Microsecond),
	)
}

func (a *Arcade) serveError(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	securityHeaders(a.cfg, w)
	w.WriteHeader(status)

	_, _ = io.WriteString(w, newPage(title, body))
}

// joinURL returns the controller link for code, signed for one controller.
func (a *Arcade) joinURL(r *http.Request, code string) (string, error) {
	token, err := a.signer.Issue(code, room.RoleController)
	if err != nil {
		return "", err
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + a.path + "/" + code + "/play?t=" + url.QueryEscape(token), nil
}

func (a *Arcade) serveQR() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("gameid")
		if _, ok := a.rooms.Get(code); !ok {
			http.Error(w, "unknown game", http.StatusNotFound)

			return
		}

		link, err := a.joinURL(r, code)
		if err != nil {
			http.Error(w, "unable to sign join link", http.StatusInternalServerError)

			return
		}

		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(a.cfg, w)

		_, _ = w.Write(png)
	}
}

// serveWS joins the socket to its room. A valid join token makes it a
// controller; without one it can only take a free display seat.
func (a *Arcade) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("gameid")

		rm, ok := a.rooms.Get(code)
		if !ok {
			http.Error(w, "unknown game", http.StatusNotFound)

			return
		}

		var role room.Role
		if token := r.URL.Query().Get("t"); token != "" {
			var err error
			role, err = a.signer.Verify(token, code)
			if err != nil {
				http.Error(w, "invalid join token", http.StatusForbidden)

				return
			}
		}

		member, err := rm.Join(room.JoinConfig{Role: role})
		switch {
		case errors.Is(err, room.ErrDisplayTaken):
			http.Error(w, "game already has a display", http.StatusConflict)

			return
		case err != nil:
			http.Error(w, "unable to join game", http.StatusGone)

			return
		}

		info := room.SessionInfo{
			Room:     code,
			Role:     member.Role,
			MemberID: member.ID,
			Variant:  a.variant,
		}
		if member.Role == room.RoleDisplay {
			info.JoinURL, err = a.joinURL(r, code)
			if err != nil {
				member.Leave()
				http.Error(w, "unable to sign join link", http.StatusInternalServerError)

				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			member.Leave()
			logf(a.cfg, "GAMES: Upgrade failed for %s: %v", realIP(r), err)

			return
		}

		_ = rm.Send(member.ID, room.MsgSession, info)

		c := &client{conn: conn, member: member}

		go c.writePump()
		c.readPump(a.cfg)
	}
}

type client struct {
	conn   *websocket.Conn
	member *room.Member
}

func (c *client) readPump(cfg *Config) {
	defer func() {
		c.member.Leave()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg room.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logf(cfg, "GAMES: Read from %s failed: %v", c.member.ID, err)
			}

			return
		}

		msg.Name = strings.TrimSpace(msg.Name)
		if msg.Name == "" {
			continue
		}

		if err := c.member.Call(msg.Name, msg.Payload, room.ScopeDisplays); errors.Is(err, room.ErrClosed) {
			return
		}
	}
}

// writePump is the only writer on the connection. It ends when the member
// leaves or the room drops it.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	messages := c.member.Messages()

	for {
		select {
		case msg, ok := <-messages:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game closed"))

				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
