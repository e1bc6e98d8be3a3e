package consts

const (
	UserSimpleInfoKey = "user:simple:info:"
	TokenBlacklistKey = "token:blacklist:"

	// IMConversationKey 会话级实时频道，后接会话 ID
	IMConversationKey = "im:conversation:"
	// NotifyUserKey 用户级通知频道，后接用户 ID
	NotifyUserKey = "notify:user:"
)
