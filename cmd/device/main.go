// Command device runs one offline verification session: it compares a
// captured frame against the subject's downloaded reference on this machine
// and submits only the signed proof.
package main

import (
	"FaceVerification/internal/biometric"
	extractorPkg "FaceVerification/pkg/extractor"
	"FaceVerification/pkg/log"
	"FaceVerification/pkg/offline"
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		panic(err)
	}
	logger := log.NewLogger()

	subjectID := flag.String("subject", "", "subject id to verify")
	imagePath := flag.String("image", "", "path of the captured frame")
	serverURL := flag.String("server", os.Getenv("VERIFICATION_API_URL"), "base url of the verification api, including /api/v1")
	flag.Parse()

	if *subjectID == "" || *imagePath == "" || *serverURL == "" {
		flag.Usage()
		os.Exit(2)
	}

	image, err := os.ReadFile(*imagePath)
	if err != nil {
		logger.Fatalf("Failed to read image: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	model := extractorPkg.New(logger, extractorPkg.ConfigFromEnv())
	defer model.Close()

	extractor := biometric.NewExtractor(logger, model, biometric.CascadeConfig{})
	if err := extractor.Init(ctx); err != nil {
		logger.Fatalf("Face model not ready: %v", err)
	}

	client := offline.New(logger, extractor, offline.Config{
		BaseURL: *serverURL,
		Token:   os.Getenv("DEVICE_TOKEN"),
	})

	res, ack, err := client.VerifyAndSubmit(ctx, *subjectID, image)
	if err != nil {
		logger.Fatalf("Offline verification failed: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"subject_id": *subjectID,
		"is_match":   res.Comparison.IsMatch,
		"confidence": res.Comparison.Confidence,
		"proof_id":   ack.ProofID,
	}).Info("Offline verification submitted")
}
