package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/api"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/models"
)

var (
	targetURL   string
	botToken    string
	concurrency int
	duration    time.Duration
	workload    string
	firstUserID int64
	totalUsers  int
)

// Metrics
var (
	totalRequests uint64
	mined         uint64 // ok:true
	cooling       uint64 // ok:false, cooldown still running
	limited       uint64 // 429
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:3000", "API base URL")
	flag.StringVar(&botToken, "token", os.Getenv("BOT_TOKEN"), "Bot token used to sign init data")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.Int64Var(&firstUserID, "first-user", 9_000_000_000, "Id of the first seeded user")
	flag.IntVar(&totalUsers, "users", 1000, "Number of seeded users")
}

func main() {
	flag.Parse()
	if botToken == "" {
		log.Fatal("a bot token is required to sign init data")
	}
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		userID := pickUser()
		body, _ := json.Marshal(models.InitDataRequest{InitData: initDataFor(userID)})

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/mine", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		// Spread clients so the per-client limiter measures the mine path.
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.%d.%d", userID%256, (userID/256)%256))

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusOK:
			var out models.MineResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				atomic.AddUint64(&failOther, 1)
			} else if out.OK {
				atomic.AddUint64(&mined, 1)
			} else {
				atomic.AddUint64(&cooling, 1)
			}
		case http.StatusTooManyRequests:
			atomic.AddUint64(&limited, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickUser() int64 {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic hits the same two users
		if rand.Float32() < 0.90 {
			return firstUserID + int64(rand.Intn(2))
		}
	}
	return firstUserID + int64(rand.Intn(totalUsers))
}

func initDataFor(userID int64) string {
	user, _ := json.Marshal(models.WebAppUser{ID: userID, FirstName: "Bench"})
	return api.SignInitData(botToken, url.Values{
		"user":      {string(user)},
		"auth_date": {strconv.FormatInt(time.Now().Unix(), 10)},
		"query_id":  {uuid.NewString()},
	})
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&mined)
	cool := atomic.LoadUint64(&cooling)
	rl := atomic.LoadUint64(&limited)
	fErr := atomic.LoadUint64(&failOther)

	var cooldownRate float64
	if total > 0 {
		cooldownRate = float64(cool) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_rps":    float64(total) / d.Seconds(),
		"mined":             ok,
		"cooldown":          cool,
		"cooldown_rate_pct": cooldownRate,
		"rate_limited":      rl,
		"errors":            fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
