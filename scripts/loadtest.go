//go:build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseURL = "http://localhost:8080"
	baseLat = 30.6010
	baseLng = -96.3140
)

type Stats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalLatency    int64
	MinLatency      int64
	MaxLatency      int64
}

func main() {
	rand.Seed(time.Now().UnixNano())

	fmt.Println("Flow Load Test")
	fmt.Println("==============")

	fmt.Println("\n1. Creating test data...")
	riderIDs, driverIDs := createTestData()

	if len(riderIDs) == 0 || len(driverIDs) == 0 {
		log.Fatal("Failed to create test data")
	}

	fmt.Printf("Created %d riders and %d drivers\n", len(riderIDs), len(driverIDs))

	fmt.Println("\n2. Testing Location Updates (1000 updates, 50 concurrent)...")
	stats := testLocationUpdates(driverIDs, 1000, 50)
	printStats("Location Updates", stats)

	fmt.Println("\n3. Testing Ride Requests (100 rides, 10 concurrent)...")
	stats = testRideRequests(riderIDs, 100, 10)
	printStats("Ride Requests", stats)

	fmt.Println("\n4. Testing Mixed Load (30 seconds)...")
	stats = testMixedLoad(riderIDs, driverIDs, 30*time.Second)
	printStats("Mixed Load", stats)

	fmt.Println("\nLoad test completed!")
}

func createTestData() ([]string, []string) {
	riderIDs := make([]string, 0)
	driverIDs := make([]string, 0)

	for i := 0; i < 20; i++ {
		rider := map[string]string{
			"phone": fmt.Sprintf("979%07d", rand.Intn(10000000)),
			"name":  fmt.Sprintf("LoadTest Rider %d", i),
		}
		body, _ := json.Marshal(rider)
		resp, err := http.Post(baseURL+"/v1/riders", "application/json", bytes.NewBuffer(body))
		if err != nil {
			continue
		}
		defer resp.Body.Close()

		if resp.StatusCode == 201 {
			var result map[string]interface{}
			json.NewDecoder(resp.Body).Decode(&result)
			if id, ok := result["id"].(string); ok {
				riderIDs = append(riderIDs, id)
			}
		}
	}

	for i := 0; i < 50; i++ {
		driver := map[string]string{
			"phone":         fmt.Sprintf("936%07d", rand.Intn(10000000)),
			"name":          fmt.Sprintf("LoadTest Driver %d", i),
			"vehicle":       "Toyota Camry",
			"license_plate": fmt.Sprintf("LDT-%04d", i),
			"payment_style": "commission",
		}
		body, _ := json.Marshal(driver)
		resp, err := http.Post(baseURL+"/v1/drivers", "application/json", bytes.NewBuffer(body))
		if err != nil {
			continue
		}
		defer resp.Body.Close()

		if resp.StatusCode == 201 {
			var result map[string]interface{}
			json.NewDecoder(resp.Body).Decode(&result)
			if id, ok := result["id"].(string); ok {
				driverIDs = append(driverIDs, id)

				loc, _ := json.Marshal(map[string]float64{
					"lat": baseLat + (rand.Float64()-0.5)*0.08,
					"lng": baseLng + (rand.Float64()-0.5)*0.08,
				})
				http.Post(baseURL+"/v1/drivers/"+id+"/online", "application/json", bytes.NewBuffer(loc))
			}
		}
	}

	return riderIDs, driverIDs
}

func testLocationUpdates(driverIDs []string, numRequests, concurrency int) *Stats {
	stats := &Stats{MinLatency: int64(^uint64(0) >> 1)}
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(driverID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			payload := map[string]float64{
				"lat": baseLat + (rand.Float64()-0.5)*0.08,
				"lng": baseLng + (rand.Float64()-0.5)*0.08,
			}
			body, _ := json.Marshal(payload)

			start := time.Now()
			resp, err := http.Post(baseURL+"/v1/drivers/"+driverID+"/location", "application/json", bytes.NewBuffer(body))
			latency := time.Since(start).Milliseconds()

			recordResult(stats, latency, err == nil && resp.StatusCode == 200, resp)
		}(driverIDs[rand.Intn(len(driverIDs))])
	}

	wg.Wait()
	return stats
}

func testRideRequests(riderIDs []string, numRequests, concurrency int) *Stats {
	stats := &Stats{MinLatency: int64(^uint64(0) >> 1)}
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(idx int, riderID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			ride := map[string]interface{}{
				"rider_id": riderID,
				"pickup": map[string]float64{
					"lat": baseLat + (rand.Float64()-0.5)*0.08,
					"lng": baseLng + (rand.Float64()-0.5)*0.08,
				},
				"dropoff": map[string]float64{
					"lat": baseLat + (rand.Float64()-0.5)*0.08,
					"lng": baseLng + (rand.Float64()-0.5)*0.08,
				},
			}
			body, _ := json.Marshal(ride)

			req, _ := http.NewRequest("POST", baseURL+"/v1/rides", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Idempotency-Key", fmt.Sprintf("load-test-ride-%d-%d", idx, time.Now().UnixNano()))

			start := time.Now()
			resp, err := http.DefaultClient.Do(req)
			latency := time.Since(start).Milliseconds()

			// 409 means the rider already has an active ride, which is
			// expected under concurrent load.
			ok := err == nil && (resp.StatusCode == 201 || resp.StatusCode == 409)
			recordResult(stats, latency, ok, resp)
		}(i, riderIDs[rand.Intn(len(riderIDs))])
	}

	wg.Wait()
	return stats
}

func testMixedLoad(riderIDs, driverIDs []string, duration time.Duration) *Stats {
	stats := &Stats{MinLatency: int64(^uint64(0) >> 1)}
	var wg sync.WaitGroup
	done := make(chan struct{})

	// Location update workers (high frequency)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					driverID := driverIDs[rand.Intn(len(driverIDs))]
					payload := map[string]float64{
						"lat": baseLat + (rand.Float64()-0.5)*0.08,
						"lng": baseLng + (rand.Float64()-0.5)*0.08,
					}
					body, _ := json.Marshal(payload)

					start := time.Now()
					resp, err := http.Post(baseURL+"/v1/drivers/"+driverID+"/location", "application/json", bytes.NewBuffer(body))
					latency := time.Since(start).Milliseconds()

					recordResult(stats, latency, err == nil && resp.StatusCode == 200, resp)
					time.Sleep(10 * time.Millisecond)
				}
			}
		}()
	}

	time.Sleep(duration)
	close(done)
	wg.Wait()

	return stats
}

func recordResult(stats *Stats, latency int64, ok bool, resp *http.Response) {
	atomic.AddInt64(&stats.TotalRequests, 1)
	atomic.AddInt64(&stats.TotalLatency, latency)

	if resp != nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}

	if !ok {
		atomic.AddInt64(&stats.FailedRequests, 1)
		return
	}
	atomic.AddInt64(&stats.SuccessRequests, 1)

	for {
		old := atomic.LoadInt64(&stats.MinLatency)
		if latency >= old || atomic.CompareAndSwapInt64(&stats.MinLatency, old, latency) {
			break
		}
	}
	for {
		old := atomic.LoadInt64(&stats.MaxLatency)
		if latency <= old || atomic.CompareAndSwapInt64(&stats.MaxLatency, old, latency) {
			break
		}
	}
}

func printStats(name string, stats *Stats) {
	avgLatency := float64(0)
	if stats.TotalRequests > 0 {
		avgLatency = float64(stats.TotalLatency) / float64(stats.TotalRequests)
	}

	fmt.Printf("\n%s Results:\n", name)
	fmt.Printf("  Total Requests:   %d\n", stats.TotalRequests)
	fmt.Printf("  Successful:       %d\n", stats.SuccessRequests)
	fmt.Printf("  Failed:           %d\n", stats.FailedRequests)
	fmt.Printf("  Success Rate:     %.2f%%\n", float64(stats.SuccessRequests)/float64(stats.TotalRequests)*100)
	fmt.Printf("  Avg Latency:      %.2f ms\n", avgLatency)
	if stats.MinLatency != int64(^uint64(0)>>1) {
		fmt.Printf("  Min Latency:      %d ms\n", stats.MinLatency)
	}
	fmt.Printf("  Max Latency:      %d ms\n", stats.MaxLatency)
	fmt.Printf("  Throughput:       %.0f req/s\n", float64(stats.TotalRequests)/(float64(stats.TotalLatency)/1000))
}
