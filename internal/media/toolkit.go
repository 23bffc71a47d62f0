package media

import "os"

// Toolkit implements the Media Toolkit (spec C1): thin wrappers around an
// external probe/mux tool and an external upload tool. One Toolkit is
// created per in-flight task so its embedded *Cmd can be cancelled
// independently of every other task's subprocess.
type Toolkit struct {
	ffmpeg  string
	ffprobe string
	rclone  string
	cmd     *Cmd
}

// New returns a Toolkit bound to the given external tool binaries.
func New(ffmpegPath, ffprobePath, rclonePath string) *Toolkit {
	return &Toolkit{
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
		rclone:  rclonePath,
		cmd:     &Cmd{},
	}
}

// Cancel kills whatever external process this Toolkit currently has
// in-flight, per spec §4.1/§9's preemptive cancellation requirement.
func (m *Toolkit) Cancel() { m.cmd.Cancel() }

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
