package classify

// labelRule binds a lookup key to a type label. Tables are declared as
// ordered slices so the generated documentation and tests see a stable order.
type labelRule struct {
	Key   string
	Label string
}

// DefaultLabel is used when neither table matches.
const DefaultLabel = "File"

// extensionLabels maps lowercase extensions (no dot) to type labels.
var extensionLabels = []labelRule{
	// Firmware images and containers
	{"bin", "Firmware"},
	{"img", "Firmware"},
	{"hwnp", "Firmware"},
	{"trx", "Firmware"},
	{"chk", "Firmware"},
	{"ubi", "Firmware"},
	{"squashfs", "Firmware"},
	{"jffs2", "Firmware"},
	{"uimage", "Firmware"},
	{"itb", "Firmware"},
	{"fw", "Firmware"},

	// Kernel and libraries
	{"ko", "Kernel Module"},
	{"dtb", "Device Tree"},
	{"dts", "Device Tree"},
	{"so", "Shared Library"},
	{"a", "Static Library"},

	// Configuration
	{"xml", "Configuration"},
	{"cfg", "Configuration"},
	{"conf", "Configuration"},
	{"ini", "Configuration"},
	{"json", "Configuration"},
	{"yaml", "Configuration"},
	{"yml", "Configuration"},
	{"prop", "Configuration"},
	{"properties", "Configuration"},

	// Scripts
	{"sh", "Script"},
	{"lua", "Script"},
	{"py", "Script"},
	{"pl", "Script"},
	{"awk", "Script"},

	// Text and docs
	{"txt", "Text"},
	{"md", "Text"},
	{"log", "Log"},
	{"pdf", "Document"},
	{"html", "Web"},
	{"htm", "Web"},
	{"js", "Web"},
	{"css", "Web"},
	{"asp", "Web"},

	// Archives
	{"zip", "Archive"},
	{"tar", "Archive"},
	{"gz", "Archive"},
	{"tgz", "Archive"},
	{"bz2", "Archive"},
	{"xz", "Archive"},
	{"7z", "Archive"},
	{"rar", "Archive"},
	{"lzma", "Archive"},

	// Security material
	{"pem", "Certificate"},
	{"crt", "Certificate"},
	{"cer", "Certificate"},
	{"der", "Certificate"},
	{"key", "Key"},

	// Images
	{"png", "Image"},
	{"jpg", "Image"},
	{"jpeg", "Image"},
	{"gif", "Image"},
	{"ico", "Image"},
	{"svg", "Image"},

	// Tools
	{"exe", "Executable"},
	{"dll", "Shared Library"},
}

// nameLabels maps well-known extensionless system file names (lowercase) to
// type labels.
var nameLabels = []labelRule{
	{"busybox", "Executable"},
	{"init", "Init Script"},
	{"rcs", "Init Script"},
	{"inittab", "Init Script"},
	{"rc.local", "Init Script"},
	{"passwd", "System File"},
	{"shadow", "System File"},
	{"group", "System File"},
	{"fstab", "System File"},
	{"hosts", "System File"},
	{"hostname", "System File"},
	{"profile", "System File"},
	{"services", "System File"},
	{"protocols", "System File"},
	{"crontab", "System File"},
	{"makefile", "Build File"},
	{"kconfig", "Build File"},
	{"readme", "Text"},
	{"license", "Text"},
	{"version", "Text"},
	{"vmlinux", "Kernel"},
	{"vmlinuz", "Kernel"},
	{"zimage", "Kernel"},
	{"uboot", "Bootloader"},
	{"u-boot", "Bootloader"},
}
