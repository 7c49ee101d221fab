// Package objectstore ships season artifacts to S3 and pulls them back.
// Keys are {prefix}/{season}/{file}.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/charleschow/fpl-pipeline/internal/season"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const DefaultPrefix = "data"

// UpdateFiles is the set refreshed after every gameweek.
var UpdateFiles = []string{
	"fbref_merged_gw_data.csv",
	"merged_gw.csv",
	"players_clean.csv",
	"fbref_most_recent_gw.csv",
}

// FullFiles is the complete set written by a full season run.
var FullFiles = []string{
	"player_idlist.csv",
	"fbref_merged_gw_data.csv",
	"fbref_ids.csv",
	"player_compiled_ids.csv",
	"missing_fbref_ids.json",
	"teams.csv",
	"merged_gw.csv",
	"fixtures.csv",
	"players_clean.csv",
}

// API is the part of *s3.Client the store uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type Store struct {
	api    API
	bucket string
	prefix string
}

// New builds a store from the default AWS credential chain.
func New(ctx context.Context, bucket, prefix string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("objectstore: bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return NewWithAPI(s3.NewFromConfig(awsCfg), bucket, prefix), nil
}

func NewWithAPI(api API, bucket, prefix string) *Store {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *Store) Key(seasonLabel, file string) string {
	return path.Join(s.prefix, seasonLabel, file)
}

type Report struct {
	Done    []string
	Missing []string
}

// UploadSeason uploads the update or full file set from
// {dataDir}/{season}. Files absent locally are logged and skipped.
func (s *Store) UploadSeason(ctx context.Context, dataDir, seasonLabel string, update bool) (Report, error) {
	if err := season.Validate(seasonLabel); err != nil {
		return Report{}, err
	}
	files := FullFiles
	if update {
		files = UpdateFiles
	}
	var rep Report
	for _, file := range files {
		local := filepath.Join(dataDir, seasonLabel, file)
		body, err := os.ReadFile(local)
		if errors.Is(err, os.ErrNotExist) {
			telemetry.Warnf("objectstore: %s not found, skipped", local)
			rep.Missing = append(rep.Missing, file)
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("read %s: %w", local, err)
		}
		key := s.Key(seasonLabel, file)
		_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(contentType(file)),
		})
		if err != nil {
			return rep, fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
		}
		telemetry.Infof("objectstore: uploaded %s", key)
		rep.Done = append(rep.Done, file)
	}
	return rep, nil
}

// Download fetches files for a season into {localDir}/{season}. Keys that do
// not exist are logged and skipped.
func (s *Store) Download(ctx context.Context, files []string, seasonLabel, localDir string) (Report, error) {
	if err := season.Validate(seasonLabel); err != nil {
		return Report{}, err
	}
	dir := filepath.Join(localDir, seasonLabel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Report{}, fmt.Errorf("create %s: %w", dir, err)
	}
	var rep Report
	for _, file := range files {
		key := s.Key(seasonLabel, file)
		out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			telemetry.Warnf("objectstore: s3://%s/%s not found", s.bucket, key)
			rep.Missing = append(rep.Missing, file)
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
		}
		err = writeBody(filepath.Join(dir, file), out.Body)
		if err != nil {
			return rep, err
		}
		telemetry.Infof("objectstore: downloaded %s to %s", key, filepath.Join(dir, file))
		rep.Done = append(rep.Done, file)
	}
	return rep, nil
}

func writeBody(dst string, body io.ReadCloser) error {
	defer body.Close()
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}

func contentType(file string) string {
	if strings.HasSuffix(file, ".json") {
		return "application/json"
	}
	return "text/csv"
}
