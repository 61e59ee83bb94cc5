package packagemanager

const PythonPackage = "python3"
const PythonVenvPackage = "python3-venv"
const PythonPipPackage = "python3-pip"

const DistributionDebian = "debian"
const DistributionUbuntu = "ubuntu"
const DistributionRaspbian = "raspbian"
const DistributionFedora = "fedora"
const DistributionRHEL = "rhel"
const DistributionCentOS = "centos"
const DistributionAmazon = "amzn"
const DistributionAlmaLinux = "almalinux"
const DistributionRocky = "rocky"

const Default = "default"

const debianFrontendEnv = "DEBIAN_FRONTEND=noninteractive"
