package constants

const (
	// Commands.
	LogChannelCommandName    = "chopper_log"
	AgeCommandName           = "age"
	AgeDeleteCommandName     = "age_delete"
	AgeEditCommandName       = "age_edit"
	AgeListCommandName       = "age_list"
	AgeAddCommandName        = "age_add"
	AgeVerifiedCommandName   = "age_id_verified"
	VerifyCommandName        = "verify"
	UserIDOptionName         = "user_id"
	ChannelIDOptionName      = "channel_id"
	BirthdayOptionName       = "birthday"
	BirthdayOptionDesc       = "Birth date in DD-MM-YYYY format"
	UserIDOptionDesc         = "Discord user ID"
	ChannelIDOptionDesc      = "Discord channel ID"
	MaxEmbedDescriptionRunes = 4000

	// Embed colors.
	SuccessEmbedColor = 0x2ECC71
	ErrorEmbedColor   = 0xE74C3C
	ListEmbedColor    = 0x3498DB
)
