package chat

import "fmt"

const safetyPrompt = `【安全要求】不得输出违法、隐私泄露、明显错误的医学/法律/财务建议；必要时礼貌拒答并给出安全替代建议。`

func systemPrompt(tone Tone) string {
	register := "友好"
	if tone == ToneFormal {
		register = "正式"
	}
	return fmt.Sprintf(`你是一个中文对话助手，语气：%s。
不确定就明确说"不确定"，并给出可操作的查证步骤。
回答尽量简洁；如需要步骤，使用有序列表。`, register)
}

// assemble prepends the system prompts and bounds the history before
// submission.
func assemble(messages []Message, tone Tone, maxHistory int) []Message {
	recent := truncate(messages, maxHistory)

	assembled := make([]Message, 0, len(recent)+2)
	assembled = append(assembled,
		Message{Role: RoleSystem, Content: systemPrompt(tone)},
		Message{Role: RoleSystem, Content: safetyPrompt},
	)
	return append(assembled, recent...)
}
