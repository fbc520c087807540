package api

import (
	"encoding/json"
	"html/template"
	"io"
	"net"
	"net/http"

	"github.com/pkg/errors"

	"leadgen/internal/intake"
)

// maxBodyBytes bounds a lead body. Oversized fields inside it are
// truncated during validation, not rejected.
const maxBodyBytes = 1 << 20

// SubmitLead handles POST /api/lead.
// Any validated submission gets 200 whatever happens in storage or mail.
func (a *API) SubmitLead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	var req intake.Request
	if err := decodeLead(http.MaxBytesReader(w, r.Body, maxBodyBytes), &req); err != nil {
		a.Log.WithError(err).Debug("undecodable lead body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid input"})
		return
	}

	res, err := a.Intake.Submit(r.Context(), req, clientIP(r))
	if err != nil {
		a.Log.WithError(err).Info("lead rejected")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid input"})
		return
	}

	a.Log.WithField("lead_id", res.Lead.ID).WithField("outcome", res.Outcome).Debug("lead accepted")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// decodeLead reads exactly one JSON value from body.
func decodeLead(body io.Reader, req *intake.Request) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(req); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("trailing data after lead body")
		}
		return errors.Wrap(err, "trailing data after lead body")
	}
	return nil
}

var checkoutUnavailable = template.Must(template.New("checkout").Parse(`<!doctype html>
<html>
<head><title>Checkout</title></head>
<body>
<h1>Checkout unavailable</h1>
<p>Online checkout is not available right now. Please contact {{.}} to complete your order.</p>
</body>
</html>
`))

// Checkout handles GET /checkout by redirecting to the hosted payment link.
func (a *API) Checkout(w http.ResponseWriter, r *http.Request) {
	if url := a.Cfg.Checkout.PaymentURL; url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	a.Log.Warn("checkout requested but no payment link is configured")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = checkoutUnavailable.Execute(w, a.Cfg.BrandName)
}

// Health handles GET /healthz.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clientIP returns the host part of RemoteAddr, which RealIP has
// already replaced with the forwarded client address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
