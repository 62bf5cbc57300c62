// Command loadtest drives concurrent search traffic at a running searcher
// over HTTP or the internal RPC port and prints a latency report.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 30s
//	go run ./cmd/loadtest -rpc localhost:9000
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Product-Search-Engine/pkg/proto"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BaseURL     string
	RPCAddr     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	Types       []string
}

var defaultQueries = []string{
	"box of chocolate candy",
	"black shirt",
	"american made products",
	"high rated items",
	"leather wallet",
	"organic green tea",
	"running shoes",
	"wireless headphones",
	"stainless steel water bottle",
	"kids toys",
	"handmade soap",
	"coffee beans",
	"wool socks",
	"phone case",
	"made in italy",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	rpcAddr := flag.String("rpc", "", "search over the RPC port at this address instead of HTTP")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		RPCAddr:     *rpcAddr,
		Concurrency: *concurrency,
		Duration:    *duration,
		Queries:     defaultQueries,
		Types:       []string{"any", "all", "exact"},
	}

	target := cfg.BaseURL
	if cfg.RPCAddr != "" {
		target = "rpc://" + cfg.RPCAddr
	}
	fmt.Println("=== Product Search Load Test ===")
	fmt.Printf("Target:      %s\n", target)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique x %d search types\n", len(cfg.Queries), len(cfg.Types))
	fmt.Println()

	stats, err := runLoadTest(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}
	sum := stats.Summarize(cfg.Duration)
	printReport(sum)
	if sum.Total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

// searchFunc runs one query and reports the HTTP status (0 over RPC) and
// whether the cache answered it.
type searchFunc func(ctx context.Context, query, searchType string) (status int, cacheHit bool, err error)

func runLoadTest(cfg Config) (*Stats, error) {
	stats := NewStats()

	workers := make([]searchFunc, cfg.Concurrency)
	for w := range workers {
		if cfg.RPCAddr != "" {
			c, err := grpc.Dial(cfg.RPCAddr)
			if err != nil {
				return nil, err
			}
			defer c.Close()
			workers[w] = rpcSearch(c)
		} else {
			workers[w] = httpSearch(cfg.BaseURL, newHTTPClient(cfg.Concurrency))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w, search := range workers {
		wg.Add(1)
		go func(workerID int, search searchFunc) {
			defer wg.Done()
			i := workerID
			for ctx.Err() == nil {
				query := cfg.Queries[i%len(cfg.Queries)]
				searchType := cfg.Types[(i/len(cfg.Queries))%len(cfg.Types)]
				i++

				start := time.Now()
				status, hit, err := search(ctx, query, searchType)
				if ctx.Err() != nil {
					return
				}
				stats.RecordRequest(searchType, time.Since(start), status, hit, err)
			}
		}(w, search)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats, nil
}

func newHTTPClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func httpSearch(baseURL string, client *http.Client) searchFunc {
	return func(ctx context.Context, query, searchType string) (int, bool, error) {
		searchURL := fmt.Sprintf("%s/api/v1/search?q=%s&type=%s&limit=10",
			baseURL, url.QueryEscape(query), searchType)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return 0, false, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, false, err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp.StatusCode, resp.Header.Get("X-Cache") == "HIT", nil
	}
}

func rpcSearch(c *grpc.Client) searchFunc {
	return func(ctx context.Context, query, searchType string) (int, bool, error) {
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		var resp proto.SearchResponse
		err := c.Call(callCtx, proto.MethodSearch, &proto.SearchRequest{
			Query:      query,
			SearchType: searchType,
			Limit:      10,
		}, &resp)
		return 0, resp.CacheHit, err
	}
}

func printReport(sum Summary) {
	var errorRate, hitRate float64
	if sum.Total > 0 {
		errorRate = float64(sum.Errors) / float64(sum.Total) * 100
	}
	if sum.Success > 0 {
		hitRate = float64(sum.CacheHits) / float64(sum.Success) * 100
	}

	fmt.Println("=== Results ===")
	renderTable([]string{"Metric", "Value"}, [][]string{
		{"Total Requests", fmt.Sprint(sum.Total)},
		{"Successful", fmt.Sprint(sum.Success)},
		{"Errors", fmt.Sprint(sum.Errors)},
		{"Error Rate", fmt.Sprintf("%.2f%%", errorRate)},
		{"Cache Hit Rate", fmt.Sprintf("%.2f%%", hitRate)},
		{"Requests/sec", fmt.Sprintf("%.2f", sum.RPS)},
	})

	fmt.Println()
	fmt.Println("=== Latency ===")
	renderTable([]string{"Min", "Avg", "P50", "P90", "P95", "P99", "Max", "StdDev"}, [][]string{{
		sum.Min.String(), sum.Avg.String(), sum.P50.String(), sum.P90.String(),
		sum.P95.String(), sum.P99.String(), sum.Max.String(), sum.StdDev.String(),
	}})

	if len(sum.SearchTypes) > 0 {
		fmt.Println()
		renderTable([]string{"Search Type", "Requests"}, sum.SearchTypes)
	}
	if len(sum.StatusCodes) > 0 {
		fmt.Println()
		renderTable([]string{"Status", "Count"}, sum.StatusCodes)
	}
}

func renderTable(headers []string, data [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header(headers)
	table.Bulk(data)
	table.Render()
}
