// Command imagevault-seed fills a running imagevault with generated images.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"time"

	fcolor "github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	serverURL   string
	totalImages int
	batchSize   int
	workerCount int
	owners      []string
)

var (
	categories = []string{"profile", "post", "story", "reel"}
	tagPool    = []string{"nature", "space", "architecture", "portrait", "city", "sunset", "beach"}
	names      = []string{"mountain", "river", "nebula", "mars", "building", "office", "profile", "hero-banner"}
)

type Result struct {
	Batch    int
	Uploaded int
	Failed   int
	Error    error
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    []struct {
		Filename string `json:"filename"`
		Error    string `json:"error"`
	} `json:"data"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "imagevault-seed",
		Short: "Upload generated images to an imagevault server",
		RunE:  runSeed,
	}

	rootCmd.Flags().StringVarP(&serverURL, "url", "u", "http://localhost:8000", "Server base URL")
	rootCmd.Flags().IntVarP(&totalImages, "count", "n", 50, "Total images to upload")
	rootCmd.Flags().IntVarP(&batchSize, "batch", "b", 5, "Files per upload request")
	rootCmd.Flags().IntVarP(&workerCount, "workers", "w", 4, "Concurrent uploaders")
	rootCmd.Flags().StringSliceVar(&owners, "users", []string{"alice", "bob", "carol"}, "Owner ids to spread images across")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	if batchSize < 1 || totalImages < 1 || workerCount < 1 || len(owners) == 0 {
		return fmt.Errorf("count, batch, workers and users must be positive")
	}
	endpoint := strings.TrimRight(serverURL, "/") + "/api/v1/images"

	pterm.DefaultHeader.WithFullWidth().WithBackgroundStyle(pterm.NewStyle(pterm.BgLightBlue)).WithTextStyle(pterm.NewStyle(pterm.FgBlack)).Println("IMAGEVAULT SEEDER")
	pterm.Println()

	data := pterm.TableData{
		{"Target Server", fcolor.New(fcolor.FgCyan).Sprint(endpoint)},
		{"Total Images", fcolor.New(fcolor.FgYellow).Sprintf("%d images", totalImages)},
		{"Batch Size", fcolor.New(fcolor.FgYellow).Sprintf("%d files", batchSize)},
		{"Concurrency", fcolor.New(fcolor.FgYellow).Sprintf("%d workers", workerCount)},
		{"Users", strings.Join(owners, ", ")},
	}
	_ = pterm.DefaultTable.WithBoxed().WithData(data).Render()
	pterm.Println()

	batches := (totalImages + batchSize - 1) / batchSize
	bar, _ := pterm.DefaultProgressbar.
		WithTotal(totalImages).
		WithTitle("Seeding images...").
		WithShowCount(true).
		WithShowElapsedTime(true).
		Start()

	var wg sync.WaitGroup
	jobs := make(chan int, batches)
	results := make(chan Result, batches)

	client := &http.Client{Timeout: 30 * time.Second}
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go worker(client, endpoint, jobs, results, &wg, bar)
	}

	for i := 0; i < batches; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	close(results)
	bar.Stop()

	uploaded, failed := 0, 0
	var failures []Result
	for res := range results {
		uploaded += res.Uploaded
		failed += res.Failed
		if res.Error != nil {
			failures = append(failures, res)
		}
	}

	pterm.Println()
	if len(failures) == 0 && failed == 0 {
		pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgGreen)).Println("SEEDING COMPLETED SUCCESSFULLY")
		pterm.Info.Printf("Uploaded %d images.\n", uploaded)
	} else {
		pterm.DefaultSection.WithStyle(pterm.NewStyle(pterm.FgYellow)).Println("COMPLETED WITH ERRORS")
		pterm.Info.Printf("Uploaded: %d | Failed: %d\n", uploaded, failed)

		pterm.Println()
		pterm.Error.Println("Failure Report:")
		for _, f := range failures {
			fmt.Printf(" - batch %s: %v\n", fcolor.RedString("%d", f.Batch), f.Error)
		}
	}
	pterm.Println()
	return nil
}

func worker(client *http.Client, endpoint string, jobs <-chan int, results chan<- Result, wg *sync.WaitGroup, bar *pterm.ProgressbarPrinter) {
	defer wg.Done()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for batch := range jobs {
		n := batchSize
		if rest := totalImages - batch*batchSize; rest < n {
			n = rest
		}

		res := Result{Batch: batch}
		resp, err := uploadBatch(client, endpoint, rng, batch, n)
		if err != nil {
			res.Failed, res.Error = n, err
		} else {
			for _, d := range resp.Data {
				if d.Error == "" {
					res.Uploaded++
				} else {
					res.Failed++
				}
			}
		}
		results <- res
		bar.Add(n)
	}
}

func uploadBatch(client *http.Client, endpoint string, rng *rand.Rand, batch, n int) (*uploadResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"user_id":     owners[rng.Intn(len(owners))],
		"title":       fmt.Sprintf("Seed batch %d", batch),
		"description": "Generated by imagevault-seed",
		"category":    categories[rng.Intn(len(categories))],
		"tags":        tagPool[rng.Intn(len(tagPool))] + "," + tagPool[rng.Intn(len(tagPool))],
		"is_public":   fmt.Sprint(rng.Intn(100) < 80),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, err
		}
	}

	for i := 0; i < n; i++ {
		img, err := generateImage(rng)
		if err != nil {
			return nil, err
		}
		hdr := textproto.MIMEHeader{}
		name := fmt.Sprintf("%s-%d-%d.png", names[rng.Intn(len(names))], batch, i)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, name))
		hdr.Set("Content-Type", "image/png")
		part, err := writer.CreatePart(hdr)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(img); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("bad response: %w", err)
	}
	return &out, nil
}

// generateImage draws a small vertical gradient.
func generateImage(rng *rand.Rand) ([]byte, error) {
	w, h := 64+rng.Intn(192), 64+rng.Intn(192)
	a := color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
	b := color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		t := float64(y) / float64(h)
		c := color.RGBA{
			R: uint8(float64(a.R)*(1-t) + float64(b.R)*t),
			G: uint8(float64(a.G)*(1-t) + float64(b.G)*t),
			B: uint8(float64(a.B)*(1-t) + float64(b.B)*t),
			A: 255,
		}
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
