package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	serverAddress = "http://localhost:8080"
	numBidders    = 4
	bidsPerBidder = 10
)

// bidder credentials registered by the server's demo account seeding
var bidderCredentials = []map[string]string{
	{"api_key": "alice-key", "api_secret": "alice-secret"},
	{"api_key": "bob-key", "api_secret": "bob-secret"},
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// apiClient handles HTTP communication with the auction API as one identity
type apiClient struct {
	baseURL   string
	authToken string
	client    *http.Client
}

// envelope mirrors the API's standardized response shape
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newAPIClient authenticates with the given demo credentials
func newAPIClient(credentials map[string]string) (*apiClient, error) {
	c := &apiClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", c.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	var token struct {
		Token string `json:"jwt_token"`
	}
	if err := json.Unmarshal(env.Data, &token); err != nil {
		return nil, err
	}

	c.authToken = token.Token
	return c, nil
}

func (c *apiClient) do(method, path string, payload interface{}) (*envelope, int, error) {
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, err
	}
	return &env, resp.StatusCode, nil
}

// createAuction lists an item as the seller and returns its auction ID
func createAuction(seller *apiClient) (string, error) {
	payload := map[string]interface{}{
		"title":          "Simulation Lot",
		"description":    "Synthetic listing used by the bidding simulation",
		"starting_price": "100.00",
		"end_time":       time.Now().Add(10 * time.Minute).Format(time.RFC3339),
		"category":       "Simulation",
	}

	env, status, err := seller.do(http.MethodPost, "/api/v1/auctions", payload)
	if err != nil {
		return "", err
	}
	if !env.Success {
		return "", fmt.Errorf("create auction failed with status %d", status)
	}

	var auction struct {
		AuctionID string `json:"auction_id"`
	}
	if err := json.Unmarshal(env.Data, &auction); err != nil {
		return "", err
	}
	return auction.AuctionID, nil
}

// runBidder fires escalating bids at the auction and reports acceptances.
// Concurrent bidders deliberately collide so the run exercises the
// arbiter's serialization: rejected TOO_LOW outcomes are expected.
func runBidder(client *apiClient, auctionID string, accepted *int64, mu *sync.Mutex, wg *sync.WaitGroup) {
	defer wg.Done()

	for i := 0; i < bidsPerBidder; i++ {
		amount := decimal.NewFromInt(100 + rand.Int63n(900)).Add(decimal.NewFromInt32(int32(i)))
		payload := map[string]interface{}{"amount": amount.StringFixed(2)}

		env, status, err := client.do(http.MethodPost, "/api/v1/auctions/"+auctionID+"/bids", payload)
		if err != nil {
			log.Warn().Err(err).Msg("bid request failed")
			continue
		}

		if env.Success {
			mu.Lock()
			*accepted++
			mu.Unlock()
			log.Info().Str("amount", amount.StringFixed(2)).Msg("bid accepted")
		} else if env.Error != nil && env.Error.Code != "TOO_LOW" {
			log.Warn().
				Int("status", status).
				Str("code", env.Error.Code).
				Msg("unexpected bid rejection")
		}

		time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
	}
}

// main drives a full bidding session against a locally running server:
// authenticate, list an auction, race concurrent bidders, then verify the
// final price matches the highest accepted amount.
func main() {
	seller, err := newAPIClient(map[string]string{"api_key": "seller-key", "api_secret": "seller-secret"})
	if err != nil {
		log.Fatal().Err(err).Msg("seller authentication failed")
	}

	auctionID, err := createAuction(seller)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auction")
	}
	log.Info().Str("auction_id", auctionID).Msg("created simulation auction")

	var (
		accepted int64
		mu       sync.Mutex
		wg       sync.WaitGroup
	)

	for i := 0; i < numBidders; i++ {
		creds := bidderCredentials[i%len(bidderCredentials)]
		client, err := newAPIClient(creds)
		if err != nil {
			log.Fatal().Err(err).Msg("bidder authentication failed")
		}

		wg.Add(1)
		go runBidder(client, auctionID, &accepted, &mu, &wg)
	}
	wg.Wait()

	env, _, err := seller.do(http.MethodGet, "/api/v1/auctions/"+auctionID, nil)
	if err != nil || !env.Success {
		log.Fatal().Err(err).Msg("failed to fetch final auction state")
	}

	var detail struct {
		Auction struct {
			CurrentPrice decimal.Decimal `json:"current_price"`
		} `json:"auction"`
		Bids []struct {
			Amount decimal.Decimal `json:"amount"`
		} `json:"bids"`
	}
	if err := json.Unmarshal(env.Data, &detail); err != nil {
		log.Fatal().Err(err).Msg("failed to decode auction detail")
	}

	log.Info().
		Int64("accepted_bids", accepted).
		Str("final_price", detail.Auction.CurrentPrice.StringFixed(2)).
		Msg("simulation complete")
}
