package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"overlayscript"
	"overlayscript/scene"
)

type frame struct {
	number int
	data   []byte
}

// generateFrames renders and PNG-encodes all frames using a pool of workers.
// Each worker owns its own overlay (renderers are not goroutine-safe); the
// scene itself is shared read-only.
func generateFrames(frameChan chan<- frame, s *scene.Scene, args *arguments,
	totalFrames int, log zerolog.Logger) {
	var wg sync.WaitGroup
	tasks := make(chan int, args.Workers*2)

	go func() {
		for i := 0; i < totalFrames; i++ {
			tasks <- i
		}
		close(tasks)
	}()

	opts := overlayscript.Options{
		TileCacheDir: args.TileCacheDir,
		Logger:       &log,
	}

	for i := 0; i < args.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			overlay := overlayscript.NewOverlay(s, opts)
			pngBuffer := new(bytes.Buffer)

			for frameNum := range tasks {
				timestamp := args.Start + float64(frameNum)/args.Framerate
				img, _, err := overlay.Render(timestamp)
				if err != nil {
					// Substitute a blank frame so the encoder
					// does not stall waiting for this number.
					log.Error().Err(err).Int("frame", frameNum).
						Msg("rendering frame failed")
					img = image.NewRGBA(image.Rect(0, 0,
						s.VideoWidth, s.VideoHeight))
				}

				pngBuffer.Reset()
				if err := png.Encode(pngBuffer, img); err != nil {
					log.Error().Err(err).Int("frame", frameNum).
						Msg("encoding frame failed")
					continue
				}

				data := make([]byte, pngBuffer.Len())
				copy(data, pngBuffer.Bytes())
				frameChan <- frame{number: frameNum, data: data}
			}
		}()
	}
	wg.Wait()
}

func runVideoPipeline(s *scene.Scene, args *arguments, log zerolog.Logger) error {
	ffmpegCmd := exec.Command("ffmpeg", "-y",
		"-f", "image2pipe", "-vcodec", "png",
		"-r", fmt.Sprintf("%f", args.Framerate), "-i", "-",
		"-c:v", "libx264", "-b:v", args.Bitrate,
		"-pix_fmt", "yuva420p",
		"-r", fmt.Sprintf("%f", args.Framerate),
		args.OutputFile)
	ffmpegIn, err := ffmpegCmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	ffmpegCmd.Stderr = os.Stderr
	if err := ffmpegCmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	totalFrames := int((args.End - args.Start) * args.Framerate)
	frameChan := make(chan frame, int(args.Framerate)*2)

	var wg sync.WaitGroup
	var writeErr error

	// Workers finish frames out of order; buffer them and feed ffmpeg
	// strictly sequentially.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ffmpegIn.Close()

		bar := progressbar.Default(int64(totalFrames), "Encoding")
		frameBuffer := make(map[int][]byte)
		nextFrameToWrite := 0
		const frameWaitTimeout = 60 * time.Second
		timeout := time.NewTimer(frameWaitTimeout)

		for nextFrameToWrite < totalFrames {
			select {
			case f, ok := <-frameChan:
				if !ok {
					writeErr = fmt.Errorf(
						"frame channel closed at frame %d",
						nextFrameToWrite)
					return
				}

				frameBuffer[f.number] = f.data
				if !timeout.Stop() {
					<-timeout.C
				}
				timeout.Reset(frameWaitTimeout)

				for {
					data, found := frameBuffer[nextFrameToWrite]
					if !found {
						break
					}
					if _, err := ffmpegIn.Write(data); err != nil {
						writeErr = fmt.Errorf(
							"writing frame %d: %w",
							nextFrameToWrite, err)
						return
					}
					bar.Add(1)

					delete(frameBuffer, nextFrameToWrite)
					nextFrameToWrite++
				}

			case <-timeout.C:
				writeErr = fmt.Errorf(
					"stuck waiting for frame %d for over %v",
					nextFrameToWrite, frameWaitTimeout)
				return
			}
		}
	}()

	generateFrames(frameChan, s, args, totalFrames, log)
	close(frameChan)
	wg.Wait()

	if writeErr != nil {
		return writeErr
	}
	if err := ffmpegCmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
