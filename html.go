/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"embed"
	"fmt"
	"html"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/arcadebox/games/scores"
)

//go:embed assets/*
var assets embed.FS

func serveHomePage(cfg *Config, recorder scores.Recorder, arcades []*Arcade, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		top, err := recorder.Top(ctx, scores.DefaultTop)
		if err != nil {
			errs <- err
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		body := homePage(cfg, arcades, top)

		written, err := w.Write([]byte(body))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func homePage(cfg *Config, arcades []*Arcade, top []scores.Entry) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(fmt.Sprintf(`<link rel="stylesheet" href="%s/assets/arcade/app.css">`, cfg.prefix))
	htmlBody.WriteString(`<title>arcadebox</title></head><body class="home"><main>`)
	htmlBody.WriteString(`<h1>arcadebox</h1><p>Open a game on a big screen, then scan the code with your phone.</p><ul class="games">`)

	for _, a := range arcades {
		htmlBody.WriteString(fmt.Sprintf(`<li><a href="%s">%s</a></li>`, a.path, html.EscapeString(a.title)))
	}

	htmlBody.WriteString(`</ul><h2>Highscores</h2>`)

	if len(top) == 0 {
		htmlBody.WriteString(`<p>No scores yet.</p>`)
	} else {
		htmlBody.WriteString(`<table class="scores"><thead><tr><th>#</th><th>Player</th><th>Score</th></tr></thead><tbody>`)
		for i, e := range top {
			htmlBody.WriteString(fmt.Sprintf(`<tr><td>%d</td><td>%s</td><td>%d</td></tr>`,
				i+1, html.EscapeString(maskEmail(e.Email)), e.Score))
		}
		htmlBody.WriteString(`</tbody></table>`)
	}

	htmlBody.WriteString(`</main></body></html>`)

	return htmlBody.String()
}

// gamePage is the shell for both screens; the script reads its settings from
// the body's data attributes.
func gamePage(cfg *Config, title, variant, code, role string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1, user-scalable=no">`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(fmt.Sprintf(`<link rel="stylesheet" href="%s/assets/arcade/app.css">`, cfg.prefix))
	htmlBody.WriteString(fmt.Sprintf(`<title>%s · %s</title></head>`, html.EscapeString(title), html.EscapeString(code)))
	htmlBody.WriteString(fmt.Sprintf(`<body class="%s" data-variant="%s" data-room="%s" data-role="%s">`,
		html.EscapeString(role), html.EscapeString(variant), html.EscapeString(code), html.EscapeString(role)))
	htmlBody.WriteString(`<div id="status" class="status">Connecting…</div><div id="app"></div>`)
	htmlBody.WriteString(fmt.Sprintf(`<script src="%s/assets/arcade/%s.js"></script>`, cfg.prefix, html.EscapeString(role)))
	htmlBody.WriteString(`</body></html>`)

	return htmlBody.String()
}

// maskEmail keeps the first letter of the local part and the domain.
func maskEmail(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 1 {
		return email
	}

	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveAssets(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		fname := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, cfg.prefix), "/")

		data, err := assets.ReadFile(fname)
		if err != nil {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		switch strings.ToLower(filepath.Ext(fname)) {
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".js":
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		case ".svg":
			w.Header().Set("Content-Type", "image/svg+xml")
		}

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /snake/
Disallow: /dodge/
Disallow: /scores`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
