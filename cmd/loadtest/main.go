package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Result is one HTTP call's outcome.
type Result struct {
	Status int
	Body   string
	Err    error
}

type envelope struct {
	Code int             `json:"code"`
	Kind string          `json:"kind"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	adminToken := flag.String("admin-token", "dev-admin-token", "admin token for dealer verification")
	nBookings := flag.Int("bookings", 100, "pending bookings competing for the listing")
	stock := flag.Int64("stock", 5, "units listed by the dealer")
	concurrency := flag.Int("c", 50, "max concurrency")
	payCalls := flag.Int("pay-calls", 50, "payment order calls for the rate limit probe")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	customer, dealer, bike, err := seed(client, *baseURL, *adminToken, *stock)
	if err != nil {
		panic(fmt.Sprintf("seed failed: %v", err))
	}
	fmt.Printf("seeded customer=%d dealer=%d bike=%d stock=%d\n", customer, dealer, bike, *stock)

	ids := make([]string, 0, *nBookings)
	for i := 0; i < *nBookings; i++ {
		var v struct {
			BookingID string `json:"booking_id"`
		}
		if err := call(client, http.MethodPost, *baseURL+"/api/bookings", map[string]any{
			"customer_id":    customer,
			"dealer_id":      dealer,
			"bike_id":        bike,
			"payment_option": "ADVANCE",
		}, nil, &v); err != nil {
			panic(fmt.Sprintf("create booking: %v", err))
		}
		ids = append(ids, v.BookingID)
	}

	// 1) Oversell probe: every booking is accepted at once.
	fmt.Printf("\nstart accept race: bookings=%d stock=%d concurrency=%d\n", len(ids), *stock, *concurrency)
	delivery := time.Now().AddDate(0, 0, 7).Format(time.DateOnly)
	results := fanOut(len(ids), *concurrency, func(i int) Result {
		return post(client, fmt.Sprintf("%s/api/bookings/%s/accept", *baseURL, ids[i]), map[string]any{"delivery_date": delivery}, nil)
	})
	printSummary("accept_race", results)

	var listings []struct {
		BikeID uint  `json:"bike_id"`
		Stock  int64 `json:"stock"`
	}
	if err := call(client, http.MethodGet, fmt.Sprintf("%s/api/dealers/%d/inventory", *baseURL, dealer), nil, nil, &listings); err != nil {
		fmt.Println("inventory check err:", err)
	} else {
		for _, li := range listings {
			if li.BikeID == bike {
				fmt.Println("final stock:", li.Stock)
			}
		}
	}

	// 2) Rate limit probe: the same booking asks for a payment order repeatedly.
	fmt.Printf("\nstart rate limit probe: booking=%s calls=%d\n", ids[0], *payCalls)
	results = fanOut(*payCalls, *payCalls, func(int) Result {
		return post(client, *baseURL+"/api/payments/orders", map[string]any{"booking_id": ids[0]}, nil)
	})
	printSummary("rate_limit", results)
}

func seed(client *http.Client, baseURL, adminToken string, stock int64) (customer, dealer, bike uint, err error) {
	var out struct {
		ID uint `json:"id"`
	}
	suffix := time.Now().UnixNano()

	if err = call(client, http.MethodPost, baseURL+"/api/customers", map[string]any{
		"name": "Load Test", "email": fmt.Sprintf("load-%d@example.com", suffix),
	}, nil, &out); err != nil {
		return
	}
	customer = out.ID

	if err = call(client, http.MethodPost, baseURL+"/api/dealers", map[string]any{
		"name": fmt.Sprintf("Load Dealer %d", suffix), "city": "Pune",
	}, nil, &out); err != nil {
		return
	}
	dealer = out.ID

	if err = call(client, http.MethodPost, baseURL+"/api/bikes", map[string]any{
		"name": "Load Bike", "brand": "Test", "base_price": "100000",
	}, nil, &out); err != nil {
		return
	}
	bike = out.ID

	if err = call(client, http.MethodPost, fmt.Sprintf("%s/api/admin/dealers/%d/verify", baseURL, dealer), nil,
		map[string]string{"X-Admin-Token": adminToken}, nil); err != nil {
		return
	}
	err = call(client, http.MethodPut, fmt.Sprintf("%s/api/dealers/%d/inventory/%d", baseURL, dealer, bike),
		map[string]any{"price": "100000", "stock": stock}, nil, nil)
	return
}

func fanOut(n, concurrency int, fn func(i int) Result) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = fn(idx)
		}(i)
	}

	wg.Wait()
	return results
}

func post(client *http.Client, url string, body any, headers map[string]string) Result {
	return do(client, http.MethodPost, url, body, headers)
}

func do(client *http.Client, method, url string, body any, headers map[string]string) Result {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(b)}
}

// call performs one request and decodes the data field of a success envelope.
func call(client *http.Client, method, url string, body any, headers map[string]string, out any) error {
	res := do(client, method, url, body, headers)
	if res.Err != nil {
		return res.Err
	}
	if res.Status >= 300 {
		return fmt.Errorf("status=%d body=%s", res.Status, res.Body)
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal([]byte(res.Body), &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

// printSummary prints the distribution of status codes and error kinds.
func printSummary(name string, results []Result) {
	count := map[string]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		label := fmt.Sprintf("%d", r.Status)
		var env envelope
		if json.Unmarshal([]byte(r.Body), &env) == nil && env.Kind != "" {
			label += " " + env.Kind
		}
		count[label]++
	}

	labels := make([]string, 0, len(count))
	for l := range count {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	fmt.Printf("[%s] http status summary:\n", name)
	for _, l := range labels {
		fmt.Printf("  %s -> %d\n", l, count[l])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}
