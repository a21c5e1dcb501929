package session

const (
	helpCommand    = "> help"
	enableCommand  = "> sayEnable"
	disableCommand = "> sayDisable"

	reactionSuccess = "✅"
	reactionFailure = "❌"
)

const helpMessage = "【読み上げボットの使い方】\n" +
	"`> sayEnable` : 自分のメッセージの読み上げを有効にします\n" +
	"`> sayEnable @ユーザー` : 指定したユーザーの読み上げを有効にします\n" +
	"`> sayDisable` : 自分のメッセージの読み上げを無効にします\n" +
	"`> help` : このヘルプを表示します\n" +
	"\n" +
	"最後の発言から4時間経過すると、読み上げは自動的に無効になります。\n" +
	"URL・メンション・カスタム絵文字・コードブロックを含むメッセージは読み上げられません。"
