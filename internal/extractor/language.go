package extractor

import "unicode"

// 语言检测时最多采样的 rune 数
const langSampleSize = 2000

// DetectLanguage 按 Unicode 区块统计猜测主要语言。
// 只区分几个目标语言，检测不出返回 unknown。
func DetectLanguage(text string) string {
	var thai, han, kana, hangul, latin, total int
	for _, r := range text {
		if total >= langSampleSize {
			break
		}
		switch {
		case unicode.Is(unicode.Thai, r):
			thai++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.IsLetter(r) && r < 0x250:
			latin++
		default:
			continue
		}
		total++
	}
	if total == 0 {
		return "unknown"
	}

	ratio := func(n int) float64 { return float64(n) / float64(total) }
	switch {
	case ratio(thai) > 0.3:
		return "th"
	case ratio(kana) > 0.1:
		// 日文混用汉字，假名出现即判日文
		return "ja"
	case ratio(hangul) > 0.3:
		return "ko"
	case ratio(han) > 0.3:
		return "zh"
	case ratio(latin) > 0.5:
		return "en"
	default:
		return "unknown"
	}
}
