package mechanism

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/yarkm13/fetchopus/transfer"
)

type S3Factory struct{}

func (f *S3Factory) Name() string { return "s3" }

func (f *S3Factory) Schemes() []string { return []string{"s3"} }

func (f *S3Factory) Create(opts transfer.Options, env *Env) (transfer.Mechanism, error) {
	return &S3Mechanism{base: base{name: f.Name(), opts: opts.Clone(), env: env}}, nil
}

// S3Mechanism downloads s3://bucket/key objects. Credentials come from the
// default AWS chain unless an access key id is given in the options.
type S3Mechanism struct {
	base
}

// PromptForUserInputOptions asks for the secret matching a configured access key id.
func (m *S3Mechanism) PromptForUserInputOptions() (transfer.Options, error) {
	if m.opts.String("access_key_id") == "" {
		return transfer.Options{}, nil
	}
	return promptSecret(m.env, m.opts, "secret_access_key",
		fmt.Sprintf("Enter secret access key for %s: ", m.opts.String("access_key_id")))
}

func (m *S3Mechanism) newClient(ctx context.Context) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error

	region := m.opts.String("region")
	if region == "" {
		region = m.env.S3Region
	}
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	if profile := m.opts.String("profile"); profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(profile))
	}

	switch {
	case m.opts.Bool("anonymous"):
		loadOpts = append(loadOpts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case m.opts.String("access_key_id") != "":
		creds := credentialsFrom(m.opts, "secret_access_key")
		secret := string(creds.password)
		creds.Clear()
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(m.opts.String("access_key_id"), secret, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := m.opts.String("endpoint")
	if endpoint == "" {
		endpoint = m.env.S3Endpoint
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (m *S3Mechanism) TransferFile(ctx context.Context, rawURL string, rng *transfer.Range, outputPath string, displayOutput bool) (bool, string) {
	s := m.newSession(displayOutput)
	u, err := url.Parse(rawURL)
	if err != nil {
		return s.fail(err)
	}
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return s.fail(fmt.Errorf("s3 url %q needs a bucket and a key", rawURL))
	}

	client, err := m.newClient(ctx)
	if err != nil {
		return s.fail(err)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if rng != nil {
		input.Range = aws.String(rng.HTTPHeader())
	}

	s.logf("getting s3://%s/%s", bucket, key)
	output, err := client.GetObject(ctx, input)
	if rng != nil && isInvalidRange(err) {
		s.logf("range %s starts past the end of the object", rng)
		return saveEmpty(s, outputPath)
	}
	if err != nil {
		return s.fail(err)
	}
	defer output.Body.Close()

	n, err := saveToPath(outputPath, output.Body, 0, -1)
	if err != nil {
		return s.fail(err)
	}
	return s.done(n, outputPath)
}

// isInvalidRange reports whether S3 rejected the Range because it starts past
// the end of the object.
func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}
