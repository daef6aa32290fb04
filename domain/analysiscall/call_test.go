package analysiscall

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"deeptrace-backend-controller/domain/extraction"
	"deeptrace-backend-controller/logging"
	emailutils "deeptrace-backend-controller/utils/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runRecorder struct {
	options []extraction.RunOptions
	result  *extraction.RunResult
	err     error
}

func (r *runRecorder) Run(_ context.Context, options *extraction.RunOptions) (*extraction.RunResult, error) {
	r.options = append(r.options, *options)
	return r.result, r.err
}

func TestAnalyze(t *testing.T) {
	logging.SetDefaultConfig(logging.GenerateTestConfig(t))
	emailutils.Init(&emailutils.Config{Enabled: false})

	recorder := &runRecorder{result: &extraction.RunResult{Attempted: 2, Processed: 1, Failed: 1, FailedIDs: []uint{5}}}
	setting := &Setting{
		Run:      recorder.Run,
		NotifyTo: []string{"a@x.com"},
		Logger:   logging.NewLogger(),
	}

	result, err := analyze(setting, context.TODO(), NewRequest(true, "b@x.com"))
	require.Nil(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []extraction.RunOptions{{RetryFailed: true}}, recorder.options)

	recorder.err = errors.New("select fail")
	_, err = analyze(setting, context.TODO(), NewRequest(false, ""))
	assert.ErrorIs(t, err, recorder.err)
}

func TestRequest_Disabled(t *testing.T) {
	Close()
	assert.False(t, Async())
	assert.ErrorIs(t, Request(NewRequest(false, "")), ErrAsyncDisabled)
}

func TestRenderRunResultPage(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	page := renderRunResultPage("req-<1>", &extraction.RunResult{
		Attempted:  3,
		Processed:  1,
		Failed:     2,
		Mentions:   4,
		FailedIDs:  []uint{7, 9},
		StartTime:  start,
		FinishTime: start.Add(1500 * time.Millisecond),
	})

	assert.Contains(t, page, "req-&lt;1&gt;")
	assert.Contains(t, page, "2024-05-01 10:00:00")
	assert.Contains(t, page, "1.5s")
	assert.Contains(t, page, "MAIL_7<br/>MAIL_9")
	assert.True(t, strings.Contains(page, "处理线索：3"))

	page = renderRunResultPage("r", &extraction.RunResult{FailedIDs: []uint{}})
	assert.Contains(t, page, "<p>无</p>")
}

func TestSendRunResultEmail(t *testing.T) {
	config := emailutils.GenerateTestConfig()
	if !config.Enabled {
		t.Skip("DEEPTRACE_TEST_SMTP_HOST not set")
	}
	emailutils.Init(config)

	err := sendRunResultEmail([]string{config.SMTP.UserName}, "test", &extraction.RunResult{
		Attempted: 20,
		Processed: 18,
		Failed:    2,
		FailedIDs: []uint{3, 4},
	})
	assert.Nil(t, err)
}
