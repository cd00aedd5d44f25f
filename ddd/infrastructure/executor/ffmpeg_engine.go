package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
)

const (
	stderrTailLines = 50
	// waitDelay 进程组被杀后等待 stderr 管道关闭的上限
	waitDelay = 5 * time.Second
)

var reProgressTime = regexp.MustCompile(`time=(\d+):(\d+):(\d+\.?\d*)`)

// FFmpegEngine 调用本地 ffmpeg/ffprobe。ffmpeg 在独立进程组中运行，
// ctx 结束时整个进程组被 SIGKILL，不会留下孤儿进程。
type FFmpegEngine struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegEngine 创建编码引擎
func NewFFmpegEngine(cfg config.FFmpegConfig) *FFmpegEngine {
	e := &FFmpegEngine{ffmpegPath: cfg.BinaryPath, ffprobePath: cfg.ProbeBinaryPath}
	if e.ffmpegPath == "" {
		e.ffmpegPath = "ffmpeg"
	}
	if e.ffprobePath == "" {
		e.ffprobePath = "ffprobe"
	}
	return e
}

// Transcode 运行 ffmpeg 直到退出或 ctx 结束
func (e *FFmpegEngine) Transcode(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("创建FFmpeg stderr管道失败: %w", err)
	}
	logger.Debugf("ffmpeg command=%s %s", e.ffmpegPath, strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("启动FFmpeg命令失败: %w", err)
	}

	tail := make(chan []string, 1)
	go func() {
		tail <- scanStderr(stderr)
	}()

	waitErr := cmd.Wait()
	lines := <-tail
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("ffmpeg terminated: %w", ctxErr)
	}
	if waitErr != nil {
		if len(lines) > 0 {
			logger.Errorf("ffmpeg failed tail_stderr=%s", strings.Join(lines, "\n"))
		}
		return fmt.Errorf("ffmpeg exited: %w: %s", waitErr, lastLine(lines))
	}
	return nil
}

// scanStderr 读取 stderr，进度行按 debug 打印，其余保留最后若干行用于排错
func scanStderr(r io.Reader) []string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	buf := make([]string, 0, stderrTailLines)
	lastProgress := time.Time{}
	for scanner.Scan() {
		line := scanner.Text()
		if m := reProgressTime.FindStringSubmatch(line); len(m) == 4 {
			if time.Since(lastProgress) > 10*time.Second {
				hh, _ := strconv.ParseFloat(m[1], 64)
				mm, _ := strconv.ParseFloat(m[2], 64)
				ss, _ := strconv.ParseFloat(m[3], 64)
				logger.Debugf("ffmpeg progress position=%.1fs", hh*3600+mm*60+ss)
				lastProgress = time.Now()
			}
			continue
		}
		if len(buf) >= stderrTailLines {
			buf = buf[1:]
		}
		buf = append(buf, line)
	}
	return buf
}

func lastLine(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			return s
		}
	}
	return ""
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Tags      struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe 用 ffprobe 读取尺寸、时长与是否有音轨
func (e *FFmpegEngine) Probe(ctx context.Context, localPath string) (gateway.ProbeResult, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-probesize", "5M",
		"-analyzeduration", "5M",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		localPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return gateway.ProbeResult{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (gateway.ProbeResult, error) {
	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return gateway.ProbeResult{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	var res gateway.ProbeResult
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if res.Width == 0 && res.Height == 0 {
				res.Width, res.Height = s.Width, s.Height
				// 竖屏视频按显示方向计算档位
				if s.Tags.Rotate == "90" || s.Tags.Rotate == "270" || s.Tags.Rotate == "-90" {
					res.Width, res.Height = s.Height, s.Width
				}
			}
		case "audio":
			res.HasAudio = true
		}
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64); err == nil {
		res.Duration = d
	}
	return res, nil
}
