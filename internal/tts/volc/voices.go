package volc

// VoiceProfile 表示一个音色的完整配置信息
type VoiceProfile struct {
	VoiceType  string // 音色 ID，如 "zh_female_meilinvyou_saturn_bigtts"
	ResourceID string // 资源 ID，如 "seed-tts-2.0"

	Language string // 语种，如 "zh"、"en"
	Gender   string // 性别，"male" 或 "female"

	Name        string // 简短名称，如 "meilin_nvyou"
	Description string // 描述，如 "温柔女声"

	DefaultSpeedRatio float64 // 默认语速
	DefaultSampleRate int     // 默认采样率
}

// 预定义音色库

var (
	VoiceMeilinNvyou = VoiceProfile{
		VoiceType:         "zh_female_meilinvyou_saturn_bigtts",
		ResourceID:        "seed-tts-2.0",
		Language:          "zh",
		Gender:            "female",
		Name:              "meilin_nvyou",
		Description:       "魅力女友",
		DefaultSpeedRatio: 1.0,
		DefaultSampleRate: 16000,
	}

	VoiceLengkuGege = VoiceProfile{
		VoiceType:         "zh_male_lengkugege_emo_v2_mars_bigtts",
		ResourceID:        "seed-tts-1.0",
		Language:          "zh",
		Gender:            "male",
		Name:              "lengku_gege",
		Description:       "冷酷哥哥",
		DefaultSpeedRatio: 1.1,
		DefaultSampleRate: 16000,
	}

	VoiceClearNarrator = VoiceProfile{
		VoiceType:         "en_female_anna_mars_bigtts",
		ResourceID:        "seed-tts-1.0",
		Language:          "en",
		Gender:            "female",
		Name:              "anna",
		Description:       "清晰英文旁白",
		DefaultSpeedRatio: 1.0,
		DefaultSampleRate: 16000,
	}
)

// VoiceRegistry 音色注册表，通过名称快速查找
var VoiceRegistry = map[string]VoiceProfile{
	"meilin_nvyou": VoiceMeilinNvyou,
	"lengku_gege":  VoiceLengkuGege,
	"anna":         VoiceClearNarrator,
}

// GetVoice 根据名称获取音色配置
func GetVoice(name string) (VoiceProfile, bool) {
	voice, ok := VoiceRegistry[name]
	return voice, ok
}

// RegisterVoice 注册新的音色（运行时动态添加）
func RegisterVoice(name string, voice VoiceProfile) {
	VoiceRegistry[name] = voice
}

// ListVoices 列出所有已注册的音色名称
func ListVoices() []string {
	names := make([]string, 0, len(VoiceRegistry))
	for name := range VoiceRegistry {
		names = append(names, name)
	}
	return names
}

// FindVoicesByLanguage 根据语种查找音色
func FindVoicesByLanguage(language string) []VoiceProfile {
	var voices []VoiceProfile
	for _, voice := range VoiceRegistry {
		if voice.Language == language {
			voices = append(voices, voice)
		}
	}
	return voices
}
