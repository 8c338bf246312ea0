package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"rigctl/config"
	"rigctl/rig"
	"rigctl/script"
)

func main() {
	configPath := flag.String("config", "rigctl.toml", "Path to the config file.")
	device := flag.String("port", "", "Serial device to use (default: discover).")
	baud := flag.Int("baud", 0, "Serial baud rate.")
	file := flag.String("file", "", "Send this script file and exit.")
	dialect := flag.String("dialect", "", "Script dialect (standard or trap).")
	addr := flag.String("addr", "", "Address to bind the rigctl API server to.")
	verbose := flag.Bool("v", false, "Debug logging.")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if *dialect != "" {
		cfg.Dialect = *dialect
	}
	if *addr != "" {
		cfg.APIAddr = *addr
	}

	d, err := script.DialectByName(cfg.Dialect)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad dialect")
	}

	t := rig.NewTransport(logger)
	sess := newSession(t, cfg.Device, cfg.Baud, cfg.VendorHints, cfg.InitialZ, d, logger)

	if *file != "" {
		if err := sendFile(sess, *file, logger); err != nil {
			logger.Fatal().Err(err).Msg("send failed")
		}
		return
	}

	api := newAPI(sess, logger)
	logger.Info().Str("addr", cfg.APIAddr).Msg("serving rig API")
	err = http.ListenAndServe(cfg.APIAddr, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logger.Debug().Str("method", req.Method).Str("path", req.URL.Path).Str("remote", req.RemoteAddr).Msg("request")
		api.ServeHTTP(w, req)
	}))
	if err != nil {
		logger.Fatal().Err(err).Msg("api server")
	}
}

// sendFile is the one-shot mode: connect, run the pipeline on the
// script file, wait for the device queue to drain, and tear down.
func sendFile(sess *session, path string, logger zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sess.AddSink(func(line string) { fmt.Println(line) })

	port, err := sess.Connect()
	if err != nil {
		return err
	}
	logger.Info().Str("port", port).Msg("device found")
	defer sess.Shutdown()

	n, err := sess.Send(string(data))
	if errs, ok := err.(script.Errors); ok {
		fmt.Fprintln(os.Stderr, errs.Summary())
		return fmt.Errorf("script has %d error(s)", len(errs))
	}
	if err != nil {
		return err
	}
	logger.Info().Int("commands", n).Float64("end_z", sess.Snapshot().Z).Msg("script sent")

	if !sess.WaitIdle(5 * time.Minute) {
		logger.Warn().Msg("device queue did not drain; disconnecting anyway")
	}
	return nil
}
