// Package carrier talks to the shipment tracking API: token auth, B2C track
// lookup, then the NPPS status query that yields the raw status code the
// classification engine consumes.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"shipment-ticket-resolver/internal/models"
)

const maxResponseBytes = 1 << 20

// Client queries the carrier API for shipment status.
type Client struct {
	baseURL    string
	account    string
	password   string
	eshopID    string
	httpClient *http.Client
}

// New builds a client. timeout bounds every request; the loop treats a
// timeout like any other transport failure.
func New(baseURL, account, password, eshopID string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		account:  account,
		password: password,
		eshopID:  eshopID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type tokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"Message"`
}

type trackResponse struct {
	Status     string `json:"status"`
	EshopsonID string `json:"eshopsonId"`
	ErrorCode  int    `json:"errorCode"`
}

type nppsRequest struct {
	ShipType   int    `json:"ShipType"`
	EshopID    string `json:"EshopId"`
	EshopsonID string `json:"EshopsonId"`
	PaymentNo  string `json:"PaymentNo"`
}

type nppsResponse struct {
	PpsType              string `json:"ppsType"`
	PpsDate              string `json:"ppsDate"`
	PpsTime              string `json:"ppsTime"`
	PpsName              string `json:"ppsName"`
	ErrorCode            int    `json:"errorCode"`
	ErrorCodeDescription string `json:"errorCodeDescription"`
}

// GetStatus resolves the tracking status for one waybill. A returned error
// means the API itself failed (transport, auth, malformed payload); a
// carrier-side "cannot determine status" comes back as a CarrierStatus with
// a non-zero ResultCode and no error.
func (c *Client) GetStatus(ctx context.Context, shipmentNo string) (models.CarrierStatus, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return models.CarrierStatus{}, err
	}

	track, err := c.fetchTrack(ctx, token, shipmentNo)
	if err != nil {
		return models.CarrierStatus{}, err
	}
	if track.ErrorCode != 0 {
		return models.CarrierStatus{
			ResultCode: track.ErrorCode,
			ResultDesc: fmt.Sprintf("track errorCode %d", track.ErrorCode),
			Date:       time.Now(),
		}, nil
	}

	npps, err := c.fetchNppsStatus(ctx, token, track.EshopsonID, shipmentNo)
	if err != nil {
		return models.CarrierStatus{}, err
	}

	status := models.CarrierStatus{
		RawCode:     npps.PpsType,
		Description: npps.PpsName,
		ResultCode:  npps.ErrorCode,
		ResultDesc:  npps.ErrorCodeDescription,
		Date:        parseStatusDate(npps.PpsDate, npps.PpsTime),
	}
	return status, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"account":  c.account,
		"password": c.password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	var resp tokenResponse
	if err := c.postJSON(ctx, c.baseURL+"/api/Token", "", body, &resp); err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	if resp.Token == "" {
		msg := resp.Message
		if msg == "" {
			msg = "empty token"
		}
		return "", fmt.Errorf("token rejected: %s", msg)
	}
	return resp.Token, nil
}

func (c *Client) fetchTrack(ctx context.Context, token, shipmentNo string) (trackResponse, error) {
	u := fmt.Sprintf("%s/api/track/B2C?eshopId=%s&shipmentNo=%s",
		c.baseURL, url.QueryEscape(c.eshopID), url.QueryEscape(shipmentNo))

	var resp trackResponse
	if err := c.getJSON(ctx, u, token, &resp); err != nil {
		return trackResponse{}, fmt.Errorf("track request: %w", err)
	}
	return resp, nil
}

func (c *Client) fetchNppsStatus(ctx context.Context, token, eshopsonID, shipmentNo string) (nppsResponse, error) {
	body, err := json.Marshal(nppsRequest{
		ShipType:   1,
		EshopID:    c.eshopID,
		EshopsonID: eshopsonID,
		PaymentNo:  c.eshopID + shipmentNo,
	})
	if err != nil {
		return nppsResponse{}, fmt.Errorf("marshal npps request: %w", err)
	}

	var resp nppsResponse
	if err := c.postJSON(ctx, c.baseURL+"/api/Npps/Status", token, body, &resp); err != nil {
		return nppsResponse{}, fmt.Errorf("npps request: %w", err)
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, url, token string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, url, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseStatusDate combines ppsDate (20060102) and ppsTime (150405). A
// missing or malformed pair falls back to the query time, matching how the
// console flow treated it.
func parseStatusDate(ppsDate, ppsTime string) time.Time {
	if ppsDate != "" && ppsTime != "" {
		if t, err := time.ParseInLocation("20060102 150405", ppsDate+" "+ppsTime, time.Local); err == nil {
			return t
		}
		logrus.Warnf("unparseable status date %q %q", ppsDate, ppsTime)
	}
	if ppsDate != "" {
		if t, err := time.ParseInLocation("20060102", ppsDate, time.Local); err == nil {
			return t
		}
	}
	return time.Now()
}
