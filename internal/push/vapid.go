// Package push отправляет Web Push уведомления через VAPID.
package push

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/ValeZask/EduDiaryGit/internal/logger"
)

// VAPIDKeys — пара ключей для Web Push (VAPID).
type VAPIDKeys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

func (k *VAPIDKeys) valid() bool {
	return k != nil && k.PublicKey != "" && k.PrivateKey != ""
}

// keysPath определяет, где хранить пару ключей: аргумент, затем env
// VAPID_KEYS_FILE, затем config/vapid.json относительно cwd.
func keysPath(path string) string {
	if path != "" {
		return path
	}
	if p := os.Getenv("VAPID_KEYS_FILE"); p != "" {
		return p
	}
	return "config/vapid.json"
}

// EnsureVAPIDKeys читает пару ключей из файла, а при его отсутствии генерирует
// новую и сохраняет. Ключи должны переживать рестарт: новая пара сделала бы
// все выданные браузерам подписки недействительными.
func EnsureVAPIDKeys(path string) (*VAPIDKeys, error) {
	path = keysPath(path)

	var keys VAPIDKeys
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &keys); err == nil && keys.valid() {
			return &keys, nil
		}
		logger.Errorf("push: файл %s повреждён, генерируется новая пара VAPID-ключей", path)
	}

	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, fmt.Errorf("generate VAPID keys: %w", err)
	}
	keys = VAPIDKeys{PublicKey: pub, PrivateKey: priv}

	if err := writeKeys(path, &keys); err != nil {
		logger.Errorf("push: не удалось сохранить VAPID-ключи в %s: %v (ключи сгенерированы и используются)", path, err)
		return &keys, nil
	}
	logger.Infof("push: VAPID-ключи сгенерированы и сохранены в %s", path)
	return &keys, nil
}

func writeKeys(path string, keys *VAPIDKeys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	// Приватный ключ: файл только для владельца.
	return os.WriteFile(path, data, 0o600)
}
