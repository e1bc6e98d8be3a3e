package consts

const (
	MimePrefixImage = "image"
	MimePrefixAudio = "audio"
	MimePrefixVideo = "video"
)

// 会话类型
const (
	ConversationTypeSingle = 1
)

// 通知类型
const (
	NotifyTypeLike     = 1
	NotifyTypeComment  = 2
	NotifyTypeFollow   = 3
	NotifyTypeDonation = 4
)

const (
	DefaultAvatarURL = "default_avatar.png"
)
