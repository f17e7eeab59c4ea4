package device

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// builtInMarkers は内蔵カメラを示すラベル断片
var builtInMarkers = []string{"integrated", "built-in", "facetime", "internal"}

// externalMarkers は外付けカメラを示すラベル断片
var externalMarkers = []string{"usb", "external"}

// LinuxDiscovery はLinux環境でのキャプチャデバイス検出を実装する
type LinuxDiscovery struct{}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
func NewLinuxDiscovery() Discovery {
	return &LinuxDiscovery{}
}

// ListDevices はシステム内の利用可能なキャプチャデバイスを列挙する
// 最初に使い捨ての権限プローブを行い、成功したら即座に解放してから列挙する
func (d *LinuxDiscovery) ListDevices(ctx context.Context) ([]Descriptor, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	if len(matches) > 0 {
		// 使い捨ての権限プローブ。開いて即閉じる
		if err := d.probePermission(matches[0]); err != nil {
			return nil, err
		}
	}

	var devices []Descriptor
	for _, match := range matches {
		// コンテキストのキャンセルをチェック
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !d.isDeviceReadable(match) {
			continue
		}

		// カラー対応のメインチャンネルのみを採用
		if !d.isMainCamera(ctx, match) {
			continue
		}

		label := d.deviceLabel(match)
		devices = append(devices, Descriptor{
			ID:      match,
			Label:   label,
			BuiltIn: labelContainsAny(label, builtInMarkers),
		})
	}

	return devices, nil
}

// probePermission はデバイスを読み取り専用で開いて即座に閉じる
// アクセス拒否は ErrPermissionDenied として報告する
func (d *LinuxDiscovery) probePermission(device string) error {
	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, device)
		}
		return fmt.Errorf("デバイスのプローブに失敗: %w", err)
	}
	_ = file.Close()
	return nil
}

// isDeviceReadable はデバイスファイルが存在し読み取れるかチェックする
func (d *LinuxDiscovery) isDeviceReadable(device string) bool {
	if _, err := os.Stat(device); os.IsNotExist(err) {
		return false
	}

	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()

	// /dev/videoXX パターンかチェック
	matched, _ := regexp.MatchString(`^/dev/video\d+$`, device)
	return matched
}

// deviceLabel はデバイスパスから表示名を生成する
func (d *LinuxDiscovery) deviceLabel(device string) string {
	// v4l2-ctlを使って実際のカメラ名を取得
	if realName := d.getV4L2DeviceName(device); realName != "" {
		return realName
	}

	// フォールバック: デバイス番号から生成
	return fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
}

// getV4L2DeviceName はv4l2-ctlを使って実際のデバイス名を取得する
func (d *LinuxDiscovery) getV4L2DeviceName(device string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--info")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}

	// "Card type" の行からカメラ名を抽出
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Card type") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				if cardType := strings.TrimSpace(parts[1]); cardType != "" {
					return cardType
				}
			}
		}
	}

	return ""
}

// isMainCamera はデバイスがメインカメラ（カラー）かどうかを判定する
// 同じ物理カメラの複数チャンネルは最小番号のみを採用する
func (d *LinuxDiscovery) isMainCamera(ctx context.Context, device string) bool {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-formats-ext")
	output, err := cmd.Output()
	if err != nil {
		return false
	}

	outputStr := string(output)

	// グレースケールのみのデバイスは除外
	if strings.Contains(outputStr, "GREY") && !strings.Contains(outputStr, "YUYV") && !strings.Contains(outputStr, "MJPG") {
		return false
	}

	hasColor := strings.Contains(outputStr, "YUYV") || strings.Contains(outputStr, "MJPG")
	if !hasColor {
		return false
	}

	// より小さい番号の兄弟チャンネルが同じカメラ名でカラー対応なら、そちらを優先
	deviceNum := extractDeviceNumber(device)
	for i := 0; i < deviceNum; i++ {
		sibling := fmt.Sprintf("/dev/video%d", i)
		if !d.isDeviceReadable(sibling) {
			continue
		}

		siblingCmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", sibling, "--list-formats-ext")
		siblingOutput, err := siblingCmd.Output()
		if err != nil {
			continue
		}

		siblingStr := string(siblingOutput)
		if strings.Contains(siblingStr, "YUYV") || strings.Contains(siblingStr, "MJPG") {
			if d.haveSameCameraName(device, sibling) {
				return false
			}
		}
	}

	return true
}

// haveSameCameraName は2つのデバイスが同じカメラかチェック
func (d *LinuxDiscovery) haveSameCameraName(device1, device2 string) bool {
	name1 := d.getV4L2DeviceName(device1)
	name2 := d.getV4L2DeviceName(device2)

	if name1 == "" || name2 == "" {
		return false
	}

	return name1 == name2
}

// labelContainsAny はラベルが断片のいずれかを含むかチェックする
func labelContainsAny(label string, markers []string) bool {
	lower := strings.ToLower(label)
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	re := regexp.MustCompile(`video(\d+)`)
	matches := re.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}

	return num
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	devices        []Descriptor
	denyPermission bool
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices []Descriptor) *MockDiscovery {
	return &MockDiscovery{devices: devices}
}

// ListDevices はモックデバイス一覧を返す
func (m *MockDiscovery) ListDevices(_ context.Context) ([]Descriptor, error) {
	if m.denyPermission {
		return nil, ErrPermissionDenied
	}

	// コピーを返す
	result := make([]Descriptor, len(m.devices))
	copy(result, m.devices)
	return result, nil
}

// SetDenyPermission はテスト用に権限拒否を設定する
func (m *MockDiscovery) SetDenyPermission(deny bool) {
	m.denyPermission = deny
}

// AddDevice はテスト用にデバイスを追加する
func (m *MockDiscovery) AddDevice(desc Descriptor) {
	m.devices = append(m.devices, desc)
}
