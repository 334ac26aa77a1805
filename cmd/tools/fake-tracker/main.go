// Command fake-tracker simulates a tracker device: it announces itself with
// a Discovery frame, waits for the Hello reply, then streams SensorData.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/banshee-data/argus/internal/protocol"
)

var (
	target       = flag.String("target", "127.0.0.1:4210", "Ingest UDP address")
	frameRate    = flag.Float64("rate", 20, "SensorData frames per second")
	count        = flag.Int("n", 0, "Number of frames to send (0 = until interrupted)")
	samples      = flag.Int("samples", 20, "IMU samples per frame (max 255)")
	sampleHz     = flag.Int("sample-hz", 1000, "IMU sample rate")
	imageBytes   = flag.Int("image", 0, "Image blob size in bytes")
	layoutName   = flag.String("layout", "compact", "IMU sample layout: compact or full")
	truncate     = flag.Bool("truncate", false, "Cut every payload after half its samples")
	corruptEvery = flag.Int("corrupt-every", 0, "Corrupt the checksum of every Nth frame")
	helloTimeout = flag.Duration("hello-timeout", 2*time.Second, "How long to wait for each Hello reply")
	retries      = flag.Int("retries", 3, "Discovery attempts before giving up")
	skipHello    = flag.Bool("skip-hello", false, "Start streaming without the Discovery handshake")
	seed         = flag.Uint64("seed", 1, "Random seed")
)

// discover sends Discovery frames until a valid Hello arrives.
func discover(conn *net.UDPConn, attempts int, timeout time.Duration) error {
	buf := make([]byte, 64)
	for i := 0; i < attempts; i++ {
		if _, err := conn.Write(protocol.EncodeReply(protocol.MessageDiscovery)); err != nil {
			return fmt.Errorf("failed to send discovery: %w", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		n, err := conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Printf("no hello after %v (attempt %d/%d)", timeout, i+1, attempts)
				continue
			}
			return fmt.Errorf("failed to read hello: %w", err)
		}
		frame, err := protocol.DecodeFrame(buf[:n])
		if err != nil {
			log.Printf("ignoring invalid reply: %v", err)
			continue
		}
		if frame.Type != protocol.MessageHello {
			log.Printf("ignoring unexpected %v reply", frame.Type)
			continue
		}
		return conn.SetReadDeadline(time.Time{})
	}
	return fmt.Errorf("no hello from %s after %d attempts", conn.RemoteAddr(), attempts)
}

func main() {
	flag.Parse()

	if *samples < 0 || *samples > 255 {
		log.Fatalf("-samples must be between 0 and 255, got %d", *samples)
	}
	if *frameRate <= 0 {
		log.Fatalf("-rate must be positive, got %v", *frameRate)
	}
	layout, err := protocol.ParseSampleLayout(*layoutName)
	if err != nil {
		log.Fatal(err)
	}

	addr, err := net.ResolveUDPAddr("udp", *target)
	if err != nil {
		log.Fatalf("failed to resolve target: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		log.Fatalf("failed to dial target: %v", err)
	}
	defer conn.Close()

	if !*skipHello {
		if err := discover(conn, *retries, *helloTimeout); err != nil {
			log.Fatal(err)
		}
		log.Printf("hello received from %s", conn.RemoteAddr())
	}

	gen := newGenerator(generatorConfig{
		Samples:      *samples,
		SampleHz:     *sampleHz,
		ImageBytes:   *imageBytes,
		Layout:       layout,
		Truncate:     *truncate,
		CorruptEvery: *corruptEvery,
		Seed:         *seed,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := rate.NewLimiter(rate.Limit(*frameRate), 1)
	sent := 0
	start := time.Now()
	for *count == 0 || sent < *count {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		frame := gen.next()
		if _, err := conn.Write(frame); err != nil {
			log.Printf("send failed: %v", err)
			continue
		}
		sent++
		if sent == 1 && len(frame) > 2048 {
			log.Printf("warning: %d-byte frames exceed the default ingest buffer", len(frame))
		}
		if sent%100 == 0 {
			log.Printf("%d frames sent", sent)
		}
	}
	log.Printf("sent %d frames in %v", sent, time.Since(start).Round(time.Millisecond))
}
