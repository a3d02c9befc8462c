package app

import (
	"github.com/vk/plugboard/internal/discovery"
	"github.com/vk/plugboard/modules/email_smtp"
	"github.com/vk/plugboard/modules/notify_socketio"
	"github.com/vk/plugboard/modules/storage_local"
	"github.com/vk/plugboard/modules/storage_s3"
)

// coreSources is the definitive list of provider modules compiled into
// the plugboard binary. Adding a provider means adding one line here;
// there is no runtime type scanning.
var coreSources = []discovery.Source{
	&email_smtp.Module{},
	&storage_local.Module{},
	&storage_s3.Module{},
	&notify_socketio.Module{},
}
